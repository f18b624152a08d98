package reconcile

import (
	"time"

	"github.com/roach88/millsync/internal/job"
)

// Summary is the result of one batch run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started_at"`
	Finished time.Time `json:"finished_at"`
	DryRun   bool      `json:"dry_run"`

	// Degraded is set when the ledger listing failed and the run
	// proceeded against an empty ledger.
	Degraded    bool   `json:"degraded"`
	DegradedErr string `json:"degraded_error,omitempty"`

	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Held    int `json:"held"`
	Failed  int `json:"failed"`

	Artifacts        int `json:"artifacts"`
	ArtifactFailures int `json:"artifact_failures"`
	Jobs             int `json:"jobs"`

	LedgerSize       int `json:"ledger_size"`
	LedgerInProgress int `json:"ledger_in_progress"`
	LedgerCompleted  int `json:"ledger_completed"`

	Sources  []job.Source `json:"sources"`
	Outcomes []Outcome    `json:"-"`
}

// Count folds one outcome into the counters.
func (s *Summary) Count(o Outcome) {
	s.Jobs++
	s.Outcomes = append(s.Outcomes, o)
	if o.Failed() {
		s.Failed++
		return
	}
	switch o.Action {
	case ActionCreate:
		s.Created++
	case ActionUpdate:
		s.Updated++
	case ActionSkip:
		s.Skipped++
	case ActionHold:
		s.Held++
	}
}

// HasFailures reports whether any job or artifact failed.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0 || s.ArtifactFailures > 0
}
