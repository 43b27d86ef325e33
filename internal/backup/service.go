// Package backup snapshots collections to files before destructive
// database work and restores them on demand.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeWKI/WKI-WIP/internal/database"
)

// ErrNoCollections is returned when a database backup finds nothing to save.
var ErrNoCollections = errors.New("no collections found in database")

// Store is the part of the database layer the service needs.
type Store interface {
	ListCollections(ctx context.Context) ([]string, error)
	BackupCollection(ctx context.Context, collectionName string, writer io.Writer, format string) (int, error)
	RestoreCollection(ctx context.Context, collectionName string, reader io.Reader, format string, dropExisting bool) (int, error)
}

type Service struct {
	db  Store
	now func() time.Time
}

func NewService(db Store) *Service {
	return &Service{db: db, now: time.Now}
}

// Snapshot is one written backup file.
type Snapshot struct {
	Collection string
	Path       string
	Documents  int
}

// BackupCollection writes backup_<collection>_<timestamp>.<format> into
// outputDir. A partial file is removed when the backup fails.
func (s *Service) BackupCollection(ctx context.Context, collectionName, outputDir, format string) (Snapshot, error) {
	if err := ValidateFormat(format); err != nil {
		return Snapshot{}, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Snapshot{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := s.now().Format("20060102_150405")
	filename := fmt.Sprintf("backup_%s_%s.%s", collectionName, timestamp, format)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create backup file: %w", err)
	}

	n, err := s.db.BackupCollection(ctx, collectionName, file, format)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return Snapshot{}, fmt.Errorf("backup of %s failed: %w", collectionName, err)
	}

	return Snapshot{Collection: collectionName, Path: path, Documents: n}, nil
}

// BackupCollections snapshots each named collection. On failure the
// snapshots already written are returned with the error.
func (s *Service) BackupCollections(ctx context.Context, names []string, outputDir, format string) ([]Snapshot, error) {
	var snapshots []Snapshot
	for _, name := range names {
		snap, err := s.BackupCollection(ctx, name, outputDir, format)
		if err != nil {
			return snapshots, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// BackupDatabase snapshots every collection except system ones.
func (s *Service) BackupDatabase(ctx context.Context, outputDir, format string) ([]Snapshot, error) {
	collections, err := s.db.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	var names []string
	for _, c := range collections {
		if !strings.HasPrefix(c, "system.") {
			names = append(names, c)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoCollections
	}
	return s.BackupCollections(ctx, names, outputDir, format)
}

func (s *Service) RestoreCollection(ctx context.Context, collectionName, inputFile, format string, dropExisting bool) (int, error) {
	file, err := os.Open(inputFile)
	if err != nil {
		return 0, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()

	n, err := s.db.RestoreCollection(ctx, collectionName, file, format, dropExisting)
	if err != nil {
		return n, fmt.Errorf("restore failed: %w", err)
	}
	return n, nil
}

func ValidateFormat(format string) error {
	if format != database.FormatJSON && format != database.FormatBSON {
		return fmt.Errorf("invalid format %q: must be 'json' or 'bson'", format)
	}
	return nil
}

// ValidateBackupFile checks that filename exists, is not empty and carries
// the extension of expectedFormat.
func ValidateBackupFile(filename, expectedFormat string) error {
	if err := ValidateFormat(expectedFormat); err != nil {
		return err
	}

	info, err := os.Stat(filename)
	if err != nil {
		return fmt.Errorf("cannot open backup file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("backup file is empty")
	}

	if ext := filepath.Ext(filename); ext != "."+expectedFormat {
		return fmt.Errorf("expected %s file but got %q", strings.ToUpper(expectedFormat), ext)
	}
	return nil
}

// CollectionFromFilename recovers the collection name from a file written
// by BackupCollection. It returns "" for any other name.
func CollectionFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if !strings.HasPrefix(base, "backup_") {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(base, "backup_"), "_")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[:len(parts)-2], "_")
}
