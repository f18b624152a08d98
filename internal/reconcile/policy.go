package reconcile

import (
	"fmt"
	"time"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/ledger"
)

// Repeat decides what happens when an in-progress job matches an
// in-progress order.
type Repeat string

const (
	// RepeatSkip counts the job as already present.
	RepeatSkip Repeat = "skip"

	// RepeatHold leaves the order untouched and suppresses a create,
	// counting the job as held until a later run sees it complete.
	RepeatHold Repeat = "hold"
)

// ParseRepeat parses a configured repeat mode.
func ParseRepeat(s string) (Repeat, error) {
	switch Repeat(s) {
	case RepeatSkip, RepeatHold:
		return Repeat(s), nil
	default:
		return "", fmt.Errorf("invalid repeat mode %q: must be skip or hold", s)
	}
}

// Policy carries the per-source differences between reconciliation variants.
type Policy struct {
	Source   job.Source
	Skew     ledger.SkewAllowList
	Repeat   Repeat
	Cooldown time.Duration
}

// DefaultPolicy returns the built-in policy for src.
func DefaultPolicy(src job.Source) Policy {
	switch src {
	case job.SourceDWX:
		return Policy{
			Source:   src,
			Skew:     ledger.SkewAllowList{time.Hour, 9 * time.Hour},
			Repeat:   RepeatHold,
			Cooldown: 500 * time.Millisecond,
		}
	case job.SourceODLog:
		return Policy{
			Source:   src,
			Skew:     ledger.FullSkew,
			Repeat:   RepeatSkip,
			Cooldown: 300 * time.Millisecond,
		}
	default:
		return Policy{
			Source:   src,
			Skew:     nil,
			Repeat:   RepeatHold,
			Cooldown: 500 * time.Millisecond,
		}
	}
}
