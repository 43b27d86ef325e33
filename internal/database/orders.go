package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

// legacyKeys maps field names written by the old direct importer to the
// API's names.
var legacyKeys = map[string]string{
	"roNumber":         "ro",
	"bayNumber":        "bay",
	"firstShiftNotes":  "firstShift",
	"secondShiftNotes": "secondShift",
}

func orderFields(o *models.Order) map[string]*string {
	return map[string]*string{
		"_id":             &o.ID,
		"id":              &o.LegacyID,
		"customer":        &o.Customer,
		"unit":            &o.Unit,
		"ro":              &o.RO,
		"bay":             &o.Bay,
		"firstShift":      &o.FirstShift,
		"secondShift":     &o.SecondShift,
		"orderedParts":    &o.OrderedParts,
		"triageNotes":     &o.TriageNotes,
		"quoteStatus":     &o.QuoteStatus,
		"repairCondition": &o.RepairCondition,
		"contactInfo":     &o.ContactInfo,
		"accountStatus":   &o.AccountStatus,
		"customerStatus":  &o.CustomerStatus,
		"call":            &o.Call,
		"dateAdded":       &o.DateAdded,
		"archiveMonth":    &o.ArchiveMonth,
		"dateCompleted":   &o.DateCompleted,
		"completedAt":     &o.CompletedAt,
		"createdAt":       &o.CreatedAt,
		"updatedAt":       &o.UpdatedAt,
	}
}

// orderFromDocument converts a raw document into an Order. ObjectIDs
// become hex strings and dates become the API's timestamp strings, so
// recency compares the same way for both sources. Unknown keys are
// ignored. A current key wins over its legacy alias.
func orderFromDocument(doc bson.M) models.Order {
	var o models.Order
	fields := orderFields(&o)

	for key, value := range doc {
		if _, legacy := legacyKeys[key]; legacy {
			continue
		}
		if dst, ok := fields[key]; ok {
			*dst = stringValue(value)
		}
	}
	for legacy, key := range legacyKeys {
		value, ok := doc[legacy]
		if !ok || *fields[key] != "" {
			continue
		}
		*fields[key] = stringValue(value)
	}
	return o
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return models.FormatTimestamp(t.Time())
	case time.Time:
		return models.FormatTimestamp(t)
	default:
		return fmt.Sprint(t)
	}
}

// archivedDocument builds the document stored by a direct archive import.
// Timestamps are stored as dates, the way the API's own writes store them.
func archivedDocument(o models.Order, month string, now time.Time) bson.D {
	return bson.D{
		{Key: "customer", Value: o.Customer},
		{Key: "unit", Value: o.Unit},
		{Key: "ro", Value: o.RO},
		{Key: "bay", Value: o.Bay},
		{Key: "firstShift", Value: o.FirstShift},
		{Key: "secondShift", Value: o.SecondShift},
		{Key: "orderedParts", Value: o.OrderedParts},
		{Key: "triageNotes", Value: o.TriageNotes},
		{Key: "quoteStatus", Value: o.QuoteStatus},
		{Key: "repairCondition", Value: o.RepairCondition},
		{Key: "contactInfo", Value: o.ContactInfo},
		{Key: "accountStatus", Value: o.AccountStatus},
		{Key: "customerStatus", Value: o.CustomerStatus},
		{Key: "call", Value: o.Call},
		{Key: "archiveMonth", Value: month},
		{Key: "dateCompleted", Value: models.Today(now)},
		{Key: "completedAt", Value: now},
		{Key: "createdAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
}

// InsertArchived writes orders straight into an archive collection under
// month, in batches. It returns how many documents were inserted.
func (m *MongoDB) InsertArchived(ctx context.Context, collectionName, month string, orders []models.Order) (int, error) {
	collection := m.Database.Collection(collectionName)
	now := time.Now().UTC()

	inserted := 0
	batch := make([]interface{}, 0, batchSize)
	for _, o := range orders {
		batch = append(batch, archivedDocument(o, month, now))
		if len(batch) < batchSize {
			continue
		}
		n, err := m.insertBatch(ctx, collection, batch)
		inserted += n
		if err != nil {
			return inserted, err
		}
		batch = batch[:0]
	}
	if len(batch) > 0 {
		n, err := m.insertBatch(ctx, collection, batch)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}

	m.logger.Info("archived orders inserted",
		zap.String("collection", collectionName),
		zap.String("month", month),
		zap.Int("count", inserted))
	return inserted, nil
}

// FindOrders returns the documents matching filter, up to limit when
// limit is positive.
func (m *MongoDB) FindOrders(ctx context.Context, collectionName string, filter bson.M, limit int64) ([]models.Order, error) {
	if filter == nil {
		filter = bson.M{}
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := m.Database.Collection(collectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collectionName, err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		orders = append(orders, orderFromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return orders, nil
}

// Sample returns the first limit documents of a collection, optionally
// restricted to one archive month.
func (m *MongoDB) Sample(ctx context.Context, collectionName, month string, limit int64) ([]models.Order, error) {
	filter := bson.M{}
	if month != "" {
		filter["archiveMonth"] = month
	}
	return m.FindOrders(ctx, collectionName, filter, limit)
}

// DeleteByID removes one document. It reports whether a document matched.
func (m *MongoDB) DeleteByID(ctx context.Context, collectionName, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var key interface{} = id
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		key = oid
	}

	result, err := m.Database.Collection(collectionName).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return false, fmt.Errorf("failed to delete %s from %s: %w", id, collectionName, err)
	}
	return result.DeletedCount > 0, nil
}

// CollectionCount is the document count of one collection.
type CollectionCount struct {
	Name  string
	Count int64
}

// CollectionCounts counts documents in every collection, sorted by name.
func (m *MongoDB) CollectionCounts(ctx context.Context) ([]CollectionCount, error) {
	names, err := m.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	counts := make([]CollectionCount, 0, len(names))
	for _, name := range names {
		n, err := m.count(ctx, name)
		if err != nil {
			return nil, err
		}
		counts = append(counts, CollectionCount{Name: name, Count: n})
	}
	return counts, nil
}

func (m *MongoDB) count(ctx context.Context, collectionName string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := m.Database.Collection(collectionName).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collectionName, err)
	}
	return n, nil
}

// MonthCount is the number of archived documents under one month label.
type MonthCount struct {
	Month string `bson:"_id"`
	Count int    `bson:"count"`
}

// CountByMonth groups a collection by archiveMonth, sorted by label.
func (m *MongoDB) CountByMonth(ctx context.Context, collectionName string) ([]MonthCount, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$archiveMonth"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := m.Database.Collection(collectionName).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate %s: %w", collectionName, err)
	}
	defer cursor.Close(ctx)

	var counts []MonthCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode month counts: %w", err)
	}
	return counts, nil
}

// MoveCollection copies every document from one collection into another,
// then empties the source. Documents keep their _id. It returns the number
// moved.
func (m *MongoDB) MoveCollection(ctx context.Context, from, to string) (int, error) {
	source := m.Database.Collection(from)
	target := m.Database.Collection(to)

	findCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	cursor, err := source.Find(findCtx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", from, err)
	}
	var docs []bson.M
	if err := cursor.All(findCtx, &docs); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", from, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	moved := 0
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := make([]interface{}, 0, end-start)
		for _, d := range docs[start:end] {
			batch = append(batch, d)
		}
		n, err := m.insertBatch(ctx, target, batch)
		moved += n
		if err != nil {
			return moved, err
		}
	}

	delCtx, cancelDel := context.WithTimeout(ctx, queryTimeout)
	defer cancelDel()
	result, err := source.DeleteMany(delCtx, bson.D{})
	if err != nil {
		return moved, fmt.Errorf("copied %d documents but failed to empty %s: %w", moved, from, err)
	}

	m.logger.Info("collection moved",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("inserted", moved),
		zap.Int64("deleted", result.DeletedCount))
	return moved, nil
}
