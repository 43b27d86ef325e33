package database

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	FormatJSON = "json"
	FormatBSON = "bson"

	dumpTimeout = 30 * time.Minute
)

// BackupCollection streams every document of a collection to writer. JSON
// output is one canonical Extended JSON document per line so types
// survive a restore; BSON output is the concatenated raw documents.
func (m *MongoDB) BackupCollection(ctx context.Context, collectionName string, writer io.Writer, format string) (int, error) {
	collection := m.Database.Collection(collectionName)
	ctx, cancel := context.WithTimeout(ctx, dumpTimeout)
	defer cancel()

	cursor, err := collection.Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to find documents: %w", err)
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		data, err := encodeDocument(cursor.Current, format)
		if err != nil {
			return count, err
		}
		if _, err := writer.Write(data); err != nil {
			return count, fmt.Errorf("failed to write backup data: %w", err)
		}
		count++

		if count%1000 == 0 {
			m.logger.Info("backup progress", zap.String("collection", collectionName), zap.Int("documents", count))
		}
	}

	if err := cursor.Err(); err != nil {
		return count, fmt.Errorf("cursor error: %w", err)
	}

	m.logger.Info("backup completed", zap.String("collection", collectionName), zap.Int("documents", count))
	return count, nil
}

// RestoreCollection inserts the documents read from reader. With
// dropExisting the collection is dropped first.
func (m *MongoDB) RestoreCollection(ctx context.Context, collectionName string, reader io.Reader, format string, dropExisting bool) (int, error) {
	collection := m.Database.Collection(collectionName)
	ctx, cancel := context.WithTimeout(ctx, dumpTimeout)
	defer cancel()

	if dropExisting {
		if err := collection.Drop(ctx); err != nil {
			m.logger.Warn("failed to drop collection", zap.String("collection", collectionName), zap.Error(err))
		}
	}

	restored := 0
	documents := make([]interface{}, 0, batchSize)
	flush := func() error {
		if len(documents) == 0 {
			return nil
		}
		n, err := m.insertBatch(ctx, collection, documents)
		restored += n
		documents = documents[:0]
		return err
	}

	err := decodeDocuments(reader, format, func(doc bson.Raw) error {
		documents = append(documents, doc)
		if len(documents) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return restored, err
	}
	if err := flush(); err != nil {
		return restored, err
	}

	m.logger.Info("restore completed", zap.String("collection", collectionName), zap.Int("documents", restored))
	return restored, nil
}

func encodeDocument(doc bson.Raw, format string) ([]byte, error) {
	if format != FormatJSON {
		return append([]byte(nil), doc...), nil
	}
	data, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeDocuments reads every document in a dump and hands it to fn.
func decodeDocuments(reader io.Reader, format string, fn func(bson.Raw) error) error {
	if format == FormatJSON {
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var doc bson.Raw
			if err := bson.UnmarshalExtJSON(line, true, &doc); err != nil {
				return fmt.Errorf("failed to decode JSON: %w", err)
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read JSON data: %w", err)
		}
		return nil
	}

	buffered := bufio.NewReader(reader)
	for {
		doc, err := bson.NewFromIOReader(buffered)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read BSON data: %w", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}
