// Package extract discovers machine work-log artifacts and turns them into
// jobs. There is one extractor per source family:
//
//	dwx    structured job JSON written by DWX mills
//	odlog  CAMeleon CS line logs named YYYYMMDD
//	xml    dental order containers, one folder per case
//
// Extractors resolve status and normalize timestamps; the reconciler does no
// further parsing.
package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/millsync/internal/job"
)

// Options configures an extractor.
type Options struct {
	// Dir is the directory scanned for artifacts.
	Dir string

	// Location is the equipment's local time zone.
	Location *time.Location

	// FilterDate excludes artifacts older than local midnight of this day.
	// Zero disables the filter.
	FilterDate time.Time

	// Limit caps the number of artifacts returned by Scan. Zero means no cap.
	Limit int

	Logger *slog.Logger
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// cutoff returns local midnight of the filter date and whether a filter is set.
func (o Options) cutoff() (time.Time, bool) {
	if o.FilterDate.IsZero() {
		return time.Time{}, false
	}
	y, m, d := o.FilterDate.In(o.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, o.location()), true
}

func (o Options) limit(artifacts []job.Artifact) []job.Artifact {
	if o.Limit > 0 && len(artifacts) > o.Limit {
		return artifacts[:o.Limit]
	}
	return artifacts
}

// New returns the extractor for src.
func New(src job.Source, opts Options) (job.Extractor, error) {
	switch src {
	case job.SourceDWX:
		return NewDWX(opts), nil
	case job.SourceODLog:
		return NewODLog(opts), nil
	case job.SourceXML:
		return NewXML(opts), nil
	default:
		return nil, fmt.Errorf("unknown source %q", src)
	}
}

// ArtifactError isolates a failure to a single artifact.
type ArtifactError struct {
	Artifact string
	Err      error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact %s: %v", e.Artifact, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// readDir lists dir, failing when the directory itself cannot be read.
func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	return entries, nil
}

// artifactFor stats one directory entry. Entries that cannot be stat'ed are
// reported through ok=false.
func artifactFor(src job.Source, dir string, e os.DirEntry) (job.Artifact, bool) {
	info, err := e.Info()
	if err != nil {
		return job.Artifact{}, false
	}
	return job.Artifact{
		Source:  src,
		Path:    filepath.Join(dir, e.Name()),
		Name:    e.Name(),
		ModTime: info.ModTime(),
	}, true
}

func sortByName(artifacts []job.Artifact, descending bool) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		if descending {
			return artifacts[i].Name > artifacts[j].Name
		}
		return artifacts[i].Name < artifacts[j].Name
	})
}

// normalizeOrderer NFC-normalizes an orderer so composed and decomposed
// Hangul compare equal.
func normalizeOrderer(s string) string {
	return norm.NFC.String(s)
}

func intPtr(n int) *int {
	return &n
}
