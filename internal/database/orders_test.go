package database

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/reconcile"
)

func TestOrderFromDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 12, 30, 8, 0, 0, 0, time.UTC)

	doc := bson.M{
		"_id":          oid,
		"customer":     "Metro",
		"ro":           "40832",
		"archiveMonth": "December 2025",
		"createdAt":    primitive.NewDateTimeFromTime(created),
		"updatedAt":    created.Add(time.Hour),
		"__v":          int32(0),
	}

	o := orderFromDocument(doc)
	assert.Equal(t, oid.Hex(), o.ID)
	assert.Equal(t, "Metro", o.Customer)
	assert.Equal(t, "40832", o.RO)
	assert.Equal(t, "2025-12-30T08:00:00.000Z", o.CreatedAt)
	assert.Equal(t, "2025-12-30T09:00:00.000Z", o.UpdatedAt)
	assert.Equal(t, o.CreatedAt, reconcile.ArchivedRecency(o))
}

func TestOrderFromDocumentLegacyKeys(t *testing.T) {
	o := orderFromDocument(bson.M{
		"roNumber":        "40001",
		"bayNumber":       "7",
		"firstShiftNotes": "waiting on parts",
	})
	assert.Equal(t, "40001", o.RO)
	assert.Equal(t, "7", o.Bay)
	assert.Equal(t, "waiting on parts", o.FirstShift)

	both := orderFromDocument(bson.M{"ro": "40002", "roNumber": "40001"})
	assert.Equal(t, "40002", both.RO)
}

func TestArchivedDocument(t *testing.T) {
	now := time.Date(2025, 11, 30, 17, 0, 0, 0, time.UTC)
	doc := archivedDocument(models.Order{Customer: "Acme", Unit: "1", RO: "40001"}, "November 2025", now)

	data, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded bson.M
	require.NoError(t, bson.Unmarshal(data, &decoded))

	o := orderFromDocument(decoded)
	assert.Equal(t, "40001", o.RO)
	assert.Equal(t, "November 2025", o.ArchiveMonth)
	assert.Equal(t, "2025-11-30", o.DateCompleted)
	assert.Equal(t, "2025-11-30T17:00:00.000Z", o.CreatedAt)
	assert.Equal(t, o.CreatedAt, o.CompletedAt)
}

func sampleDocs(t *testing.T) []bson.Raw {
	t.Helper()
	var docs []bson.Raw
	for _, ro := range []string{"40001", "40002", "40003"} {
		data, err := bson.Marshal(bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "ro", Value: ro},
			{Key: "createdAt", Value: primitive.NewDateTimeFromTime(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC))},
		})
		require.NoError(t, err)
		docs = append(docs, data)
	}
	return docs
}

func TestDumpRoundTrip(t *testing.T) {
	for _, format := range []string{FormatJSON, FormatBSON} {
		t.Run(format, func(t *testing.T) {
			docs := sampleDocs(t)

			var buf bytes.Buffer
			for _, d := range docs {
				data, err := encodeDocument(d, format)
				require.NoError(t, err)
				buf.Write(data)
			}

			var got []bson.Raw
			require.NoError(t, decodeDocuments(&buf, format, func(doc bson.Raw) error {
				got = append(got, doc)
				return nil
			}))

			require.Len(t, got, len(docs))
			for i := range docs {
				assert.Equal(t, docs[i].Lookup("_id"), got[i].Lookup("_id"))
				assert.Equal(t, docs[i].Lookup("createdAt"), got[i].Lookup("createdAt"))
				assert.Equal(t, docs[i].Lookup("ro").StringValue(), got[i].Lookup("ro").StringValue())
			}
		})
	}
}

func TestDecodeTruncatedBSON(t *testing.T) {
	docs := sampleDocs(t)
	truncated := docs[0][:len(docs[0])-3]

	err := decodeDocuments(bytes.NewReader(truncated), FormatBSON, func(bson.Raw) error { return nil })
	require.Error(t, err)
}
