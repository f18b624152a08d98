package ledger

import (
	"log/slog"
	"time"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/timefmt"
)

// JitterWindow is the exclusive bound under which two start times are the
// same instant.
const JitterWindow = 60 * time.Second

// SkewAllowList is a set of start-time differences that count as the same
// instant when matched exactly to the millisecond. Each entry is a known
// constant offset between a source's clock representation and the remote
// ledger's; it is never a tolerance band.
type SkewAllowList []time.Duration

// FullSkew is the union of every known clock-representation offset.
var FullSkew = SkewAllowList{1 * time.Hour, 8 * time.Hour, 9 * time.Hour}

// Contains reports whether diff equals an entry to the millisecond.
func (s SkewAllowList) Contains(diff time.Duration) bool {
	ms := diff.Milliseconds()
	for _, skew := range s {
		if skew.Milliseconds() == ms {
			return true
		}
	}
	return false
}

// MatchRule names the rule that accepted a candidate.
type MatchRule string

const (
	RuleWindow MatchRule = "window"
	RuleSkew   MatchRule = "skew"
)

// Match is the result of a successful Find.
type Match struct {
	Index int
	Order Order
	Rule  MatchRule
	Diff  time.Duration
}

// Matcher finds the cached order that represents the same work item as a job.
type Matcher struct {
	Skew SkewAllowList

	// Logger receives per-candidate diagnostics at debug level. Nil discards them.
	Logger *slog.Logger
}

// Find scans l in stored order and returns the first order with the job's
// exact orderer whose start differs from the job's transmitted start by
// less than JitterWindow, or by exactly an allow-listed skew.
func (m Matcher) Find(j job.Job, l Ledger) (Match, bool) {
	start := timefmt.Transmit(j.WorkStart, j.Encoding)
	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	for i, o := range l.orders {
		if o.Orderer != j.Orderer {
			continue
		}
		diff := absDiff(start, o.WorkStart)
		rule, ok := m.accept(diff)
		logger.Debug("match candidate",
			"orderer", j.Orderer,
			"index", i,
			"order_code", o.OrderCode,
			"diff_ms", diff.Milliseconds(),
			"matched", ok,
			"rule", string(rule))
		if ok {
			return Match{Index: i, Order: o, Rule: rule, Diff: diff}, true
		}
	}
	return Match{}, false
}

func (m Matcher) accept(diff time.Duration) (MatchRule, bool) {
	if diff.Milliseconds() < JitterWindow.Milliseconds() {
		return RuleWindow, true
	}
	if m.Skew.Contains(diff) {
		return RuleSkew, true
	}
	return "", false
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
