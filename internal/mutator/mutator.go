// Package mutator applies one remote operation per record, strictly in
// order, and records what happened to each.
package mutator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/MikeWKI/WKI-WIP/internal/api"
	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
	"github.com/MikeWKI/WKI-WIP/internal/report"
)

// ErrNoID is recorded for a record that cannot be addressed remotely.
var ErrNoID = errors.New("order has no id")

// Remote is the subset of the API client the mutator drives.
type Remote interface {
	CreateOrder(ctx context.Context, order models.Order) (models.Order, api.Result)
	DeleteOrder(ctx context.Context, id string) api.Result
	ArchiveOrder(ctx context.Context, id, month string) api.Result
	BulkArchive(ctx context.Context, orders []models.Order) (models.BulkArchiveResult, api.Result)
}

// Record is the outcome of one dispatched record.
type Record struct {
	Order  models.Order
	Result api.Result
	// Month is the archive bucket the record was sent to, if any.
	Month string
	// Orphaned marks a create-then-archive whose create succeeded and whose
	// archive did not. The order is still active under Order.ID.
	Orphaned bool
}

type Mutator struct {
	remote Remote
	out    io.Writer
	table  *report.Table
	logger *zap.Logger

	Tally   report.Tally
	Records []Record
}

// New returns a mutator reporting to out.
func New(remote Remote, out io.Writer, logger *zap.Logger) *Mutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mutator{
		remote: remote,
		out:    out,
		table:  report.NewTable(out, report.ColRO, report.ColCustomer, report.ColResult, report.ColDetail),
		logger: logger,
	}
}

// Create posts each order as a new active order.
func (m *Mutator) Create(ctx context.Context, orders []models.Order) {
	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		m.create(ctx, o)
	}
}

// Delete removes each order by id.
func (m *Mutator) Delete(ctx context.Context, orders []models.Order) {
	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		id := o.OrderID()
		if id == "" {
			m.record(Record{Order: o, Result: missingID()}, "")
			continue
		}
		m.record(Record{Order: o, Result: m.remote.DeleteOrder(ctx, id)}, "")
	}
}

// Archive moves each active order into the month bucket.
func (m *Mutator) Archive(ctx context.Context, orders []models.Order, month string) {
	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		id := o.OrderID()
		if id == "" {
			m.record(Record{Order: o, Result: missingID(), Month: month}, month)
			continue
		}
		m.record(Record{Order: o, Result: m.remote.ArchiveOrder(ctx, id, month), Month: month}, month)
	}
}

// CreateThenArchive creates each order and immediately archives it into
// month. The two calls are not atomic: when the archive call fails the
// record stays active and is reported as orphaned.
func (m *Mutator) CreateThenArchive(ctx context.Context, orders []models.Order, month string) {
	for _, o := range orders {
		if ctx.Err() != nil {
			return
		}
		m.createThenArchive(ctx, o, month)
	}
}

// Resubmit creates each failed order again. Orders that were headed for an
// archive bucket go through create-then-archive into that bucket.
func (m *Mutator) Resubmit(ctx context.Context, failed []plan.FailedOrder) {
	for _, f := range failed {
		if ctx.Err() != nil {
			return
		}
		if f.Month == "" {
			m.create(ctx, f.Order)
			continue
		}
		m.createThenArchive(ctx, f.Order, f.Month)
	}
}

func (m *Mutator) create(ctx context.Context, o models.Order) {
	created, res := m.remote.CreateOrder(ctx, o)
	if res.OK() && created.ID != "" {
		o.ID = created.ID
	}
	m.record(Record{Order: o, Result: res}, "")
}

func (m *Mutator) createThenArchive(ctx context.Context, o models.Order, month string) {
	created, res := m.remote.CreateOrder(ctx, o)
	if !res.OK() {
		m.record(Record{Order: o, Result: res, Month: month}, month)
		return
	}
	o.ID = created.ID
	if o.ID == "" {
		// Created, but nothing to archive it by.
		res = api.Result{Outcome: api.OutcomeRejected, StatusCode: res.StatusCode, Body: res.Body, Err: ErrNoID}
		m.record(Record{Order: o, Result: res, Month: month, Orphaned: true}, month)
		return
	}

	res = m.remote.ArchiveOrder(ctx, o.ID, month)
	m.record(Record{Order: o, Result: res, Month: month, Orphaned: !res.OK()}, month)
}

// BulkArchive sends every order in one call and prints the server's counts.
// The duplicate count is shown only when the server reports one.
func (m *Mutator) BulkArchive(ctx context.Context, orders []models.Order) (models.BulkArchiveResult, api.Result) {
	summary, res := m.remote.BulkArchive(ctx, orders)
	if !res.OK() {
		m.logger.Error("bulk archive failed", zap.Int("status", res.StatusCode), zap.Error(res.Err))
		fmt.Fprintf(m.out, "Bulk archive %s: %s\n", res.Tag(), bodyOrError(res))
		return summary, res
	}

	fmt.Fprintf(m.out, "Archived: %d\n", summary.Archived)
	if summary.Duplicates != nil {
		fmt.Fprintf(m.out, "Duplicates skipped: %d\n", *summary.Duplicates)
	}
	return summary, res
}

// Finish renders the per-record table and the footer.
func (m *Mutator) Finish(verb string) {
	m.table.Render()
	m.Tally.WriteFooter(m.out, verb)
}

// Failed returns the records that did not succeed, in dispatch order.
func (m *Mutator) Failed() []Record {
	var failed []Record
	for _, r := range m.Records {
		if !r.Result.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// FailedOrders converts failed creates into the retry artifact. Orphaned
// records are excluded because they already exist remotely.
func (m *Mutator) FailedOrders() []plan.FailedOrder {
	var out []plan.FailedOrder
	for _, r := range m.Failed() {
		if r.Orphaned {
			continue
		}
		f := plan.FailedOrder{Order: r.Order, StatusCode: r.Result.StatusCode, Month: r.Month}
		if r.Result.Err != nil {
			f.Error = r.Result.Err.Error()
		}
		out = append(out, f)
	}
	return out
}

// OrphanedOrders lists the records left active by a failed archive call,
// with the bucket each was meant for.
func (m *Mutator) OrphanedOrders() []plan.OrphanedOrder {
	var out []plan.OrphanedOrder
	for _, r := range m.Records {
		if !r.Orphaned || r.Order.ID == "" {
			continue
		}
		out = append(out, plan.OrphanedOrder{
			ID:       r.Order.ID,
			RO:       r.Order.RO,
			Customer: r.Order.Customer,
			Month:    r.Month,
		})
	}
	return out
}

func (m *Mutator) record(r Record, detail string) {
	m.Records = append(m.Records, r)
	m.Tally.Add(r.Result.Outcome)
	if r.Orphaned {
		m.Tally.Orphaned++
		detail = "left active: " + bodyOrError(r.Result)
	} else if !r.Result.OK() {
		detail = bodyOrError(r.Result)
	}

	m.table.Append(r.Order.RO, r.Order.Customer, r.Result.Tag(), detail)

	fields := []zap.Field{
		zap.String("ro", r.Order.RO),
		zap.String("order_id", r.Order.OrderID()),
		zap.String("outcome", string(r.Result.Outcome)),
		zap.Int("status", r.Result.StatusCode),
	}
	if r.Result.OK() {
		m.logger.Debug("record done", fields...)
		return
	}
	m.logger.Warn("record failed", append(fields, zap.Bool("orphaned", r.Orphaned), zap.Error(r.Result.Err))...)
}

func missingID() api.Result {
	return api.Result{Outcome: api.OutcomeSkipped, Err: ErrNoID}
}

func bodyOrError(res api.Result) string {
	if len(res.Body) > 0 {
		return string(res.Body)
	}
	if res.Err != nil {
		return res.Err.Error()
	}
	return ""
}
