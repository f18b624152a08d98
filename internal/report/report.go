// Package report renders run summaries for people: a plain-text digest for
// the terminal and an XLSX workbook with one row per job outcome.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/millsync/internal/reconcile"
	"github.com/roach88/millsync/internal/timefmt"
)

// WriteText writes the text digest of s. Times are shown in loc.
func WriteText(w io.Writer, s reconcile.Summary, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	var b strings.Builder

	fmt.Fprintf(&b, "run %s", s.RunID)
	if s.DryRun {
		b.WriteString(" (dry run)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "sources:   %s\n", joinSources(s))
	fmt.Fprintf(&b, "started:   %s\n", s.Started.In(loc).Format(timefmt.WireLayout))
	fmt.Fprintf(&b, "finished:  %s (%s)\n",
		s.Finished.In(loc).Format(timefmt.WireLayout),
		s.Finished.Sub(s.Started).Round(time.Second))
	if s.Degraded {
		fmt.Fprintf(&b, "ledger:    unavailable, reconciled against an empty ledger (%s)\n", s.DegradedErr)
	} else {
		fmt.Fprintf(&b, "ledger:    %d orders listed\n", s.LedgerSize)
	}

	b.WriteString("\n")
	for _, row := range []struct {
		label string
		n     int
	}{
		{"created", s.Created},
		{"updated", s.Updated},
		{"skipped", s.Skipped},
		{"held", s.Held},
		{"failed", s.Failed},
	} {
		fmt.Fprintf(&b, "  %-8s %5d\n", row.label, row.n)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "artifacts: %d processed, %d failed\n", s.Artifacts, s.ArtifactFailures)
	fmt.Fprintf(&b, "jobs:      %d\n", s.Jobs)
	fmt.Fprintf(&b, "ledger:    %d in progress, %d completed\n", s.LedgerInProgress, s.LedgerCompleted)

	writeOutcomes(&b, "held", s.Outcomes, loc, func(o reconcile.Outcome) bool {
		return o.Action == reconcile.ActionHold
	})
	writeOutcomes(&b, "failures", s.Outcomes, loc, reconcile.Outcome.Failed)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeOutcomes(b *strings.Builder, title string, outcomes []reconcile.Outcome, loc *time.Location, keep func(reconcile.Outcome) bool) {
	first := true
	for _, o := range outcomes {
		if !keep(o) {
			continue
		}
		if first {
			fmt.Fprintf(b, "\n%s:\n", title)
			first = false
		}
		fmt.Fprintf(b, "  #%d %s %s %s %s %s",
			o.Seq, o.Source, o.Artifact, o.Orderer,
			o.WorkStart.In(loc).Format(timefmt.WireLayout), o.Action)
		if o.Err != nil {
			fmt.Fprintf(b, ": %v", o.Err)
		}
		b.WriteString("\n")
	}
}

func joinSources(s reconcile.Summary) string {
	if len(s.Sources) == 0 {
		return "none"
	}
	names := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		names[i] = string(src)
	}
	return strings.Join(names, ", ")
}
