package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/roach88/millsync/internal/job"
	"github.com/roach88/millsync/internal/timefmt"
)

// XMLModel is the equipment model reported for dental order containers.
const XMLModel = "XML-System"

// XML extracts one job per dental order folder.
type XML struct {
	opts Options
}

// NewXML creates a dental order container extractor.
func NewXML(opts Options) *XML {
	return &XML{opts: opts}
}

func (x *XML) Source() job.Source {
	return job.SourceXML
}

// Scan returns sub-folders in name order. Folders modified before the
// filter date are dropped.
func (x *XML) Scan(ctx context.Context) ([]job.Artifact, error) {
	entries, err := readDir(x.opts.Dir)
	if err != nil {
		return nil, err
	}
	cutoff, filtered := x.opts.cutoff()
	logger := x.opts.logger()

	var out []job.Artifact
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		a, ok := artifactFor(job.SourceXML, x.opts.Dir, e)
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
	return x.opts.limit(out), nil
}

type dentalContainer struct {
	XMLName xml.Name    `xml:"DentalContainer"`
	Objects []xmlObject `xml:"Object"`
}

type xmlObject struct {
	Name       string        `xml:"name,attr"`
	Properties []xmlProperty `xml:"Property"`
	Objects    []xmlObject   `xml:"Object"`
	Lists      []xmlList     `xml:"List"`
}

type xmlList struct {
	Objects []xmlObject `xml:"Object"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (o *xmlObject) child(name string) *xmlObject {
	if o == nil {
		return nil
	}
	for i := range o.Objects {
		if o.Objects[i].Name == name {
			return &o.Objects[i]
		}
	}
	return nil
}

// firstListed returns the first object of the first list.
func (o *xmlObject) firstListed() *xmlObject {
	if o == nil || len(o.Lists) == 0 || len(o.Lists[0].Objects) == 0 {
		return nil
	}
	return &o.Lists[0].Objects[0]
}

func (o *xmlObject) prop(name string) string {
	if o == nil {
		return ""
	}
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Extract reads <folder>/<folder>.xml. The job ends at the folder's
// modification time, the last write made by the equipment.
func (x *XML) Extract(ctx context.Context, a job.Artifact) ([]job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(a.Path, a.Name+".xml"))
	if err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: err}
	}

	var doc dentalContainer
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("decode xml: %w", err)}
	}
	if len(doc.Objects) == 0 {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("no container object")}
	}
	root := &doc.Objects[0]
	order := root.child("OrderList").firstListed()
	if order == nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("no order in OrderList")}
	}
	model := root.child("ModelElementList").firstListed()

	loc := x.opts.location()
	raw := model.prop("CreateDate")
	if raw == "" || raw == "0" {
		raw = order.prop("CacheMaxScanDate")
	}
	start, ok, err := timefmt.ParseEpoch(raw, loc)
	if err != nil {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("start time: %w", err)}
	}
	if !ok {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("no start time")}
	}

	name := order.prop("Patient_LastName")
	if name == "" {
		return nil, &ArtifactError{Artifact: a.Name, Err: fmt.Errorf("no patient name")}
	}

	j := job.Job{
		Orderer:        CleanPatientName(name),
		EquipmentModel: XMLModel,
		WorkStart:      start,
		Encoding:       timefmt.EncodingEpoch,
		Artifact:       a.Name,
	}
	if !a.ModTime.IsZero() {
		end := timefmt.FromFileTime(a.ModTime, loc)
		j.WorkEnd = &end
		j.Succeeded = true
		if m := int(end.Sub(start) / time.Minute); m > 0 {
			j.TotalMinutes = intPtr(m)
		}
	}
	return []job.Job{j}, nil
}

// charsetReader decodes non-UTF-8 XML using the declared encoding label.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
