package report

import (
	"fmt"
	"io"

	"github.com/MikeWKI/WKI-WIP/internal/api"
)

// Tally counts per-record outcomes. Success, Rejected and Transport
// partition the dispatched records; Skipped records were never sent.
// Orphaned is a subset of the failures.
type Tally struct {
	Success   int
	Rejected  int
	Transport int
	Skipped   int
	Orphaned  int
}

func (t *Tally) Add(o api.Outcome) {
	switch o {
	case api.OutcomeSuccess:
		t.Success++
	case api.OutcomeRejected:
		t.Rejected++
	case api.OutcomeSkipped:
		t.Skipped++
	default:
		t.Transport++
	}
}

func (t Tally) Total() int {
	return t.Success + t.Rejected + t.Transport
}

func (t Tally) Failed() int {
	return t.Rejected + t.Transport
}

// WriteFooter prints the summary block that closes every report.
func (t Tally) WriteFooter(out io.Writer, verb string) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s: %d\n", verb, t.Success)
	fmt.Fprintf(out, "Rejected: %d\n", t.Rejected)
	fmt.Fprintf(out, "Transport failure: %d\n", t.Transport)
	fmt.Fprintf(out, "Total: %d\n", t.Total())
	if t.Skipped > 0 {
		fmt.Fprintf(out, "Skipped (no id, not sent): %d\n", t.Skipped)
	}
	if t.Orphaned > 0 {
		fmt.Fprintf(out, "Left active after failed archive: %d (run 'wip completed orphans')\n", t.Orphaned)
	}
}
