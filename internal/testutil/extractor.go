package testutil

import (
	"context"
	"fmt"

	"github.com/roach88/millsync/internal/job"
)

// StaticExtractor serves predetermined artifacts and jobs.
type StaticExtractor struct {
	Src job.Source

	// Artifacts are returned by Scan in order.
	Artifacts []job.Artifact

	// Jobs maps an artifact name to its jobs.
	Jobs map[string][]job.Job

	// Broken maps an artifact name to an extraction error.
	Broken map[string]error

	ScanErr error
}

func (e *StaticExtractor) Source() job.Source {
	return e.Src
}

func (e *StaticExtractor) Scan(ctx context.Context) ([]job.Artifact, error) {
	if e.ScanErr != nil {
		return nil, e.ScanErr
	}
	return e.Artifacts, nil
}

func (e *StaticExtractor) Extract(ctx context.Context, a job.Artifact) ([]job.Job, error) {
	if err, ok := e.Broken[a.Name]; ok {
		return nil, err
	}
	jobs, ok := e.Jobs[a.Name]
	if !ok {
		return nil, fmt.Errorf("unknown artifact %q", a.Name)
	}
	return jobs, nil
}

// SingleArtifact builds a StaticExtractor with one artifact holding jobs.
func SingleArtifact(src job.Source, name string, jobs ...job.Job) *StaticExtractor {
	for i := range jobs {
		jobs[i].Artifact = name
	}
	return &StaticExtractor{
		Src:       src,
		Artifacts: []job.Artifact{{Source: src, Path: name, Name: name}},
		Jobs:      map[string][]job.Job{name: jobs},
	}
}
