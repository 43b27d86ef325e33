package models

import (
	"fmt"
	"time"
)

// Order is one work order as the API serves it. The csv tags are the
// spreadsheet column names used by the service department sheets.
type Order struct {
	ID              string `json:"_id,omitempty" csv:"-"`
	LegacyID        string `json:"id,omitempty" csv:"-"`
	Customer        string `json:"customer" csv:"Customer"`
	Unit            string `json:"unit" csv:"UNIT"`
	RO              string `json:"ro" csv:"R.O."`
	Bay             string `json:"bay" csv:"Bay #"`
	FirstShift      string `json:"firstShift" csv:"First Shift Notes"`
	SecondShift     string `json:"secondShift" csv:"Second Shift Notes"`
	OrderedParts    string `json:"orderedParts" csv:"Ordered parts/ETA and TCS case #s"`
	TriageNotes     string `json:"triageNotes" csv:"Triage Notes"`
	QuoteStatus     string `json:"quoteStatus" csv:"Quote Status"`
	RepairCondition string `json:"repairCondition" csv:"Repair Condition"`
	ContactInfo     string `json:"contactInfo" csv:"Contact Info"`
	AccountStatus   string `json:"accountStatus" csv:"Account Status"`
	CustomerStatus  string `json:"customerStatus" csv:"Customer Status"`
	Call            string `json:"call" csv:"Call"`
	DateAdded       string `json:"dateAdded,omitempty" csv:"-"`
	ArchiveMonth    string `json:"archiveMonth,omitempty" csv:"-"`
	DateCompleted   string `json:"dateCompleted,omitempty" csv:"-"`
	CompletedAt     string `json:"completedAt,omitempty" csv:"-"`
	CreatedAt       string `json:"createdAt,omitempty" csv:"-"`
	UpdatedAt       string `json:"updatedAt,omitempty" csv:"-"`
}

// OrderID returns the database id, falling back to the legacy "id" field
// found in older hand-off files.
func (o Order) OrderID() string {
	if o.ID != "" {
		return o.ID
	}
	return o.LegacyID
}

// DuplicateGroup is every order sharing one RO number.
type DuplicateGroup struct {
	RO     string  `json:"ro"`
	Count  int     `json:"count"`
	Orders []Order `json:"orders"`
}

// BulkArchiveResult is the response body of POST /archives/bulk.
// Duplicates is nil when the server did not report a skip count.
type BulkArchiveResult struct {
	Archived   int  `json:"archived"`
	Duplicates *int `json:"duplicates,omitempty"`
}

// TimestampLayout matches JavaScript's Date.toISOString so string order is
// chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t the way the API serializes dates.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// Today returns the YYYY-MM-DD stamp used for dateAdded.
func Today(now time.Time) string {
	return now.Format("2006-01-02")
}

// ArchiveMonthLabel returns the bucket label the server defaults to,
// e.g. "November 2025".
func ArchiveMonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", t.Month().String(), t.Year())
}
