// Package job defines the locally observed unit of machine work and the
// contract extractors satisfy to produce it.
package job

import (
	"context"
	"strings"
	"time"

	"github.com/roach88/millsync/internal/timefmt"
)

// Status is the derived state of a Job.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Source identifies the artifact family a Job was extracted from.
type Source string

const (
	SourceDWX   Source = "dwx"
	SourceODLog Source = "odlog"
	SourceXML   Source = "xml"
)

// Sources lists every source in processing order.
var Sources = []Source{SourceDWX, SourceODLog, SourceXML}

// ParseSource returns the Source named s, or false.
func ParseSource(s string) (Source, bool) {
	for _, src := range Sources {
		if string(src) == strings.ToLower(strings.TrimSpace(s)) {
			return src, true
		}
	}
	return "", false
}

// Job is a unit of machine work extracted from an artifact.
// Jobs are immutable once extracted.
type Job struct {
	Orderer        string
	EquipmentModel string
	WorkStart      time.Time

	// WorkEnd is nil while the job is still running.
	WorkEnd *time.Time

	// TotalMinutes is derived by the extractor and may be nil.
	TotalMinutes *int

	Errors []string

	// Succeeded is the artifact-specific success flag. It only matters
	// once WorkEnd is set.
	Succeeded bool

	// Encoding records how the artifact wrote its timestamps. It selects
	// the wire correction applied on transmission.
	Encoding timefmt.Encoding

	// Artifact is the path the job was read from, for diagnostics.
	Artifact string
}

// Status derives the job status from end-time presence and the success flag.
func (j Job) Status() Status {
	switch {
	case j.WorkEnd == nil:
		return StatusInProgress
	case j.Succeeded:
		return StatusCompleted
	default:
		return StatusFailed
	}
}

// ErrorText joins the error list, or returns "" when there are no errors.
func (j Job) ErrorText() string {
	return strings.Join(j.Errors, ", ")
}

// Artifact is a discovered file or folder holding one or more jobs.
type Artifact struct {
	Source  Source
	Path    string
	Name    string
	ModTime time.Time
}

// Extractor discovers artifacts for one source and turns each into Jobs.
// Scan must return artifacts in a stable, deterministic order, and Extract
// must return jobs in their intra-artifact order with status and timestamps
// already resolved.
type Extractor interface {
	Source() Source
	Scan(ctx context.Context) ([]Artifact, error)
	Extract(ctx context.Context, a Artifact) ([]Job, error)
}
