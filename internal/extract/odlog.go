package extract

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/timefmt"
)

// ODLogModel is the equipment model reported for line-log jobs.
const ODLogModel = "CAMeleon CS"

var (
	odlogName  = regexp.MustCompile(`^\d{8}$`)
	odlogOpen  = regexp.MustCompile(`FIle Open :(.+?)\.nc`)
	odlogStart = regexp.MustCompile(`Auto START : \((.+?)\)- (.+)`)
	odlogEnd   = regexp.MustCompile(`WORK END : \((.+?)\)- (.+)`)
)

// ODLog extracts jobs from CAMeleon CS line logs.
type ODLog struct {
	opts Options
}

// NewODLog creates a line-log extractor.
func NewODLog(opts Options) *ODLog {
	return &ODLog{opts: opts}
}

func (o *ODLog) Source() job.Source {
	return job.SourceODLog
}

// Scan returns YYYYMMDD files on or after the filter date, newest first.
func (o *ODLog) Scan(ctx context.Context) ([]job.Artifact, error) {
	entries, err := readDir(o.opts.Dir)
	if err != nil {
		return nil, err
	}
	cutoff, filtered := o.opts.cutoff()
	minName := cutoff.Format("20060102")
	logger := o.opts.logger()

	var out []job.Artifact
	for _, e := range entries {
		if e.IsDir() || !odlogName.MatchString(e.Name()) {
			continue
		}
		if filtered && e.Name() < minName {
			continue
		}
		a, ok := artifactFor(job.SourceODLog, o.opts.Dir, e)
		if !ok {
			logger.Warn("cannot stat artifact, excluded", "artifact", e.Name())
			continue
		}
		out = append(out, a)
	}
	sortByName(out, true)
	return o.opts.limit(out), nil
}

type odlogJob struct {
	file  string
	start *time.Time
	end   *time.Time
}

// Extract walks the log line by line. A job opened but never ended, either
// because another file is opened or the log ends, is emitted in progress.
func (o *ODLog) Extract(ctx context.Context, a job.Artifact) ([]job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: err}
	}
	defer f.Close()

	loc := o.opts.location()
	logger := o.opts.logger().With("artifact", a.Name)
	var (
		jobs []job.Job
		cur  *odlogJob
	)
	emit := func(j *odlogJob) {
		jobs = append(jobs, j.toJob(a.Name))
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimRight(sc.Text(), "\r")

		if strings.Contains(line, "FIle Open :") {
			if cur != nil && cur.start != nil && cur.end == nil {
				emit(cur)
			}
			if m := odlogOpen.FindStringSubmatch(line); m != nil {
				cur = &odlogJob{file: strings.TrimSpace(m[1]) + ".nc"}
			}
		}

		if cur != nil && strings.Contains(line, "Auto START :") {
			if m := odlogStart.FindStringSubmatch(line); m != nil {
				t, err := timefmt.ParseLogStamp(m[1], m[2], loc)
				if err != nil {
					logger.Warn("bad start stamp", "line", lineNo, "error", err)
				} else {
					cur.start = &t
				}
			}
		}

		if cur != nil && cur.start != nil && strings.Contains(line, "WORK END :") {
			if m := odlogEnd.FindStringSubmatch(line); m != nil {
				t, err := timefmt.ParseLogStamp(m[1], m[2], loc)
				if err != nil {
					logger.Warn("bad end stamp", "line", lineNo, "error", err)
					continue
				}
				cur.end = &t
				emit(cur)
				cur = nil
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("read log: %w", err)}
	}
	if cur != nil && cur.start != nil && cur.end == nil {
		emit(cur)
	}
	return jobs, nil
}

func (j *odlogJob) toJob(artifact string) job.Job {
	out := job.Job{
		Orderer:        normalizeOrderer(j.file),
		EquipmentModel: ODLogModel,
		WorkStart:      *j.start,
		WorkEnd:        j.end,
		Succeeded:      j.end != nil,
		Encoding:       timefmt.EncodingLocal,
		Artifact:       artifact,
	}
	if j.end != nil {
		out.TotalMinutes = intPtr(int(math.Round(j.end.Sub(*j.start).Minutes())))
	}
	return out
}
