package tui

import (
	"fmt"
	"strconv"

	"github.com/MikeWKI/WKI-WIP/internal/models"
	"github.com/MikeWKI/WKI-WIP/internal/plan"
	"github.com/MikeWKI/WKI-WIP/internal/reconcile"
)

// Action is the decision shown for one reviewed record.
type Action string

const (
	ActionKeep    Action = "KEEP"
	ActionDelete  Action = "DELETE"
	ActionArchive Action = "ARCHIVE"
	ActionQueued  Action = "QUEUED"
	ActionFailed  Action = "FAILED"
	ActionImport  Action = "IMPORT"
)

// Artifact is one kind of plan file the reviewer can open.
type Artifact struct {
	Title string
	File  string
	load  func(path string) ([]Entry, error)
}

// Entry is one line of a review.
type Entry struct {
	Action   Action
	RO       string
	Customer string
	Detail   string
}

// Artifacts lists every plan file in the order the menu shows them.
var Artifacts = []Artifact{
	{Title: "Duplicate active orders", File: plan.DuplicateOrdersFile, load: groupEntries(reconcile.ActiveRecency)},
	{Title: "Completed orders to archive", File: plan.OrdersToArchiveFile, load: archiveEntries},
	{Title: "Duplicate archived orders", File: plan.DuplicateArchivesFile, load: groupEntries(reconcile.ArchivedRecency)},
	{Title: "Archive deletion queue", File: plan.ArchivedToDeleteFile, load: queueEntries},
	{Title: "Failed imports", File: plan.FailedOrdersFile, load: failedEntries},
	{Title: "Orders left active by a failed archive", File: plan.OrphanedOrdersFile, load: orphanEntries},
	{Title: "Parsed import backup", File: plan.ParsedOrdersFile, load: parsedEntries},
}

// Load reads the artifact at path and lays out its decisions.
func (a Artifact) Load(path string) ([]Entry, error) {
	return a.load(path)
}

// groupEntries replays the keep-newest rule so the reviewer sees what a
// removal run would do with the saved groups.
func groupEntries(recency func(models.Order) string) func(string) ([]Entry, error) {
	return func(path string) ([]Entry, error) {
		groups, err := plan.LoadGroups(path)
		if err != nil {
			return nil, err
		}

		var entries []Entry
		for _, r := range reconcile.Resolve(groups, recency) {
			entries = append(entries, orderEntry(ActionKeep, r.Keep, recency(r.Keep)))
			for _, d := range r.Delete {
				entries = append(entries, orderEntry(ActionDelete, d, recency(d)))
			}
		}
		return entries, nil
	}
}

func archiveEntries(path string) ([]Entry, error) {
	orders, err := plan.LoadOrders(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, orderEntry(ActionArchive, o, statusDetail(o)))
	}
	return entries, nil
}

func queueEntries(path string) ([]Entry, error) {
	queue, err := plan.LoadDeletions(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(queue))
	for _, q := range queue {
		entries = append(entries, Entry{Action: ActionQueued, RO: q.RO, Customer: q.Customer, Detail: q.Month + " " + q.ID})
	}
	return entries, nil
}

func failedEntries(path string) ([]Entry, error) {
	failed, err := plan.LoadFailed(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(failed))
	for _, f := range failed {
		detail := f.Error
		if f.StatusCode != 0 {
			detail = strconv.Itoa(f.StatusCode) + " " + detail
		}
		if f.Month != "" {
			detail += " (for " + f.Month + ")"
		}
		entries = append(entries, orderEntry(ActionFailed, f.Order, detail))
	}
	return entries, nil
}

func orphanEntries(path string) ([]Entry, error) {
	orphans, err := plan.LoadOrphans(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(orphans))
	for _, o := range orphans {
		entries = append(entries, Entry{Action: ActionArchive, RO: o.RO, Customer: o.Customer, Detail: o.Month + " " + o.ID})
	}
	return entries, nil
}

func parsedEntries(path string) ([]Entry, error) {
	orders, err := plan.LoadOrders(path)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, orderEntry(ActionImport, o, "unit "+o.Unit))
	}
	return entries, nil
}

func orderEntry(action Action, o models.Order, detail string) Entry {
	return Entry{Action: action, RO: o.RO, Customer: o.Customer, Detail: detail}
}

func statusDetail(o models.Order) string {
	switch {
	case o.CustomerStatus != "" && o.RepairCondition != "":
		return fmt.Sprintf("%s / %s", o.CustomerStatus, o.RepairCondition)
	case o.CustomerStatus != "":
		return o.CustomerStatus
	default:
		return o.RepairCondition
	}
}

// Summary counts entries per action.
func Summary(entries []Entry) map[Action]int {
	counts := make(map[Action]int)
	for _, e := range entries {
		counts[e.Action]++
	}
	return counts
}
