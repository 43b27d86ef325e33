// Package plan persists the decisions a detection run makes so a later,
// separate run can execute or audit them.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

// Default artifact names, relative to the working directory.
const (
	OrdersToArchiveFile   = "orders_to_archive.json"
	DuplicateOrdersFile   = "duplicate_orders.json"
	DuplicateArchivesFile = "duplicate_archives.json"
	ArchivedToDeleteFile  = "archived_to_delete.json"
	ParsedOrdersFile      = "parsed_orders.json"
	FailedOrdersFile      = "failed_orders.json"
	OrphanedOrdersFile    = "orphaned_orders.json"
)

// ErrNotFound means the detection step that writes the artifact has not run.
var ErrNotFound = errors.New("plan artifact not found")

// QueuedDeletion is one archived order scheduled for removal.
type QueuedDeletion struct {
	ID       string `json:"id"`
	RO       string `json:"ro"`
	Customer string `json:"customer"`
	Month    string `json:"month"`
}

// FailedOrder is an order the API did not accept, kept whole so it can be
// resubmitted.
type FailedOrder struct {
	Order      models.Order `json:"order"`
	StatusCode int          `json:"statusCode,omitempty"`
	Error      string       `json:"error"`
	// Month is the archive bucket the order was headed for; empty for
	// orders imported as active.
	Month string `json:"month,omitempty"`
}

// OrphanedOrder is an order that was created but never reached its archive
// bucket. The API keeps no trace of the intended month, so this file is
// the only record of it.
type OrphanedOrder struct {
	ID       string `json:"id"`
	RO       string `json:"ro"`
	Customer string `json:"customer"`
	Month    string `json:"month"`
}

// Save writes v as indented JSON, replacing path atomically.
func Save(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// Load reads a JSON artifact into v. A missing file yields ErrNotFound.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// LoadOrders reads a list of orders.
func LoadOrders(path string) ([]models.Order, error) {
	var orders []models.Order
	if err := Load(path, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// LoadGroups reads saved duplicate groups.
func LoadGroups(path string) ([]models.DuplicateGroup, error) {
	var groups []models.DuplicateGroup
	if err := Load(path, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// LoadDeletions reads the archived-order deletion queue.
func LoadDeletions(path string) ([]QueuedDeletion, error) {
	var queue []QueuedDeletion
	if err := Load(path, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// LoadFailed reads orders saved by a previous import for resubmission.
func LoadFailed(path string) ([]FailedOrder, error) {
	var failed []FailedOrder
	if err := Load(path, &failed); err != nil {
		return nil, err
	}
	return failed, nil
}

// LoadOrphans reads orders left active by a failed archive call.
func LoadOrphans(path string) ([]OrphanedOrder, error) {
	var orphans []OrphanedOrder
	if err := Load(path, &orphans); err != nil {
		return nil, err
	}
	return orphans, nil
}

// MergeOrphans adds found to known. An id already present takes the newer
// month.
func MergeOrphans(known, found []OrphanedOrder) []OrphanedOrder {
	index := make(map[string]int, len(known))
	out := append([]OrphanedOrder{}, known...)
	for i, o := range out {
		index[o.ID] = i
	}
	for _, o := range found {
		if i, ok := index[o.ID]; ok {
			out[i] = o
			continue
		}
		index[o.ID] = len(out)
		out = append(out, o)
	}
	return out
}
