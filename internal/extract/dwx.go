package extract

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/timefmt"
)

//go:embed dwx.schema.json
var dwxSchemaSource []byte

var dwxSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("dwx.schema.json", bytes.NewReader(dwxSchemaSource)); err != nil {
		return nil, fmt.Errorf("add dwx schema: %w", err)
	}
	return compiler.Compile("dwx.schema.json")
})

// validateDWX checks the document shape before it is decoded into dwxFile.
func validateDWX(data []byte) error {
	schema, err := dwxSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("unexpected dwx layout: %w", err)
	}
	return nil
}

// DWX extracts jobs from DWX structured job JSON files.
type DWX struct {
	opts Options
}

// NewDWX creates a DWX extractor.
func NewDWX(opts Options) *DWX {
	return &DWX{opts: opts}
}

func (d *DWX) Source() job.Source {
	return job.SourceDWX
}

// Scan returns *.json files in name order, dropping files modified before
// the filter date.
func (d *DWX) Scan(ctx context.Context) ([]job.Artifact, error) {
	entries, err := readDir(d.opts.Dir)
	if err != nil {
		return nil, err
	}
	cutoff, filtered := d.opts.cutoff()
	logger := d.opts.logger()

	var out []job.Artifact
	total := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(fileExt(e.Name()), ".json") {
			continue
		}
		total++
		a, ok := artifactFor(job.SourceDWX, d.opts.Dir, e)
		if !ok {
			logger.Warn("cannot stat artifact, excluded", "artifact", e.Name())
			continue
		}
		if filtered && a.ModTime.Before(cutoff) {
			continue
		}
		out = append(out, a)
	}
	sortByName(out, false)
	logger.Debug("dwx scan", "found", total, "kept", len(out))
	return d.opts.limit(out), nil
}

type dwxFile struct {
	ModelName string   `json:"ModelName"`
	Jobs      []dwxJob `json:"Jobs"`
}

type dwxJob struct {
	StartTime    string            `json:"StartTime"`
	EndTime      *string           `json:"EndTime"`
	WorkTime     string            `json:"WorkTime"`
	JobResult    int               `json:"JobResult"`
	ErrorList    []json.RawMessage `json:"ErrorList"`
	Applications []struct {
		StlFile string `json:"StlFile"`
	} `json:"Applications"`
}

// Extract parses every job in the file, in file order.
func (d *DWX) Extract(ctx context.Context, a job.Artifact) ([]job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: err}
	}

	if err := validateDWX(data); err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: err}
	}
	var f dwxFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("decode json: %w", err)}
	}
	if len(f.Jobs) == 0 {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("no jobs")}
	}

	loc := d.opts.location()
	jobs := make([]job.Job, 0, len(f.Jobs))
	for i, dj := range f.Jobs {
		j, err := dj.toJob(f.ModelName, loc)
		if err != nil {
			return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("job %d: %w", i, err)}
		}
		j.Artifact = a.Name
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (dj dwxJob) toJob(model string, loc *time.Location) (job.Job, error) {
	if len(dj.Applications) == 0 {
		return job.Job{}, fmt.Errorf("no applications")
	}
	start, err := timefmt.ParseOffsetSuffixed(dj.StartTime, loc)
	if err != nil {
		return job.Job{}, fmt.Errorf("start time: %w", err)
	}

	j := job.Job{
		Orderer:        OrdererFromStl(dj.Applications[0].StlFile),
		EquipmentModel: model,
		WorkStart:      start,
		Errors:         errorStrings(dj.ErrorList),
		Succeeded:      dj.JobResult == 1,
		Encoding:       timefmt.EncodingOffsetSuffixed,
	}
	if dj.EndTime != nil && strings.TrimSpace(*dj.EndTime) != "" {
		end, err := timefmt.ParseOffsetSuffixed(*dj.EndTime, loc)
		if err != nil {
			return job.Job{}, fmt.Errorf("end time: %w", err)
		}
		j.WorkEnd = &end
		if m, ok := workTimeMinutes(dj.WorkTime); ok {
			j.TotalMinutes = intPtr(m)
		}
	}
	return j, nil
}

// workTimeMinutes converts "HH:MM:SS(.f)" to whole minutes, dropping seconds.
func workTimeMinutes(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return h*60 + m, true
}

// errorStrings flattens an error list whose entries are usually strings
// but occasionally structured.
func errorStrings(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, strings.TrimSpace(string(r)))
	}
	return out
}

func fileExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i:]
}
