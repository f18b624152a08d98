package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/millsync/internal/reconcile"
	"github.com/roach88/millsync/internal/timefmt"
)

// Sheet names in the exported workbook.
const (
	OutcomesSheet = "Outcomes"
	SummarySheet  = "Summary"
)

var outcomeHeaders = []string{
	"Seq",
	"Source",
	"Artifact",
	"Orderer",
	"Status",
	"Work Start",
	"Action",
	"Match Rule",
	"Order Code",
	"Error",
}

// XLSX returns a workbook with one row per job outcome and a summary sheet.
func XLSX(s reconcile.Summary, loc *time.Location) ([]byte, error) {
	f, err := workbook(s, loc)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveXLSX writes the workbook for s to path.
func SaveXLSX(path string, s reconcile.Summary, loc *time.Location) error {
	f, err := workbook(s, loc)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx save %s: %w", path, err)
	}
	return nil
}

func workbook(s reconcile.Summary, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", OutcomesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := writeOutcomeSheet(f, s, loc); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := writeSummarySheet(f, s, loc); err != nil {
		f.Close()
		return nil, err
	}

	idx, _ := f.GetSheetIndex(OutcomesSheet)
	f.SetActiveSheet(idx)
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("xlsx %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func writeOutcomeSheet(f *excelize.File, s reconcile.Summary, loc *time.Location) error {
	headers := make([]any, len(outcomeHeaders))
	for i, h := range outcomeHeaders {
		headers[i] = h
	}
	if err := setRow(f, OutcomesSheet, 1, headers...); err != nil {
		return err
	}

	for i, o := range s.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		err := setRow(f, OutcomesSheet, i+2,
			o.Seq,
			string(o.Source),
			o.Artifact,
			o.Orderer,
			string(o.Status),
			o.WorkStart.In(loc).Format(timefmt.WireLayout),
			string(o.Action),
			string(o.MatchRule),
			o.OrderCode,
			errText,
		)
		if err != nil {
			return err
		}
	}

	_ = f.SetColWidth(OutcomesSheet, "A", "B", 8)
	_ = f.SetColWidth(OutcomesSheet, "C", "C", 32)
	_ = f.SetColWidth(OutcomesSheet, "D", "D", 20)
	_ = f.SetColWidth(OutcomesSheet, "E", "E", 13)
	_ = f.SetColWidth(OutcomesSheet, "F", "F", 20)
	_ = f.SetColWidth(OutcomesSheet, "G", "I", 12)
	_ = f.SetColWidth(OutcomesSheet, "J", "J", 60)
	return nil
}

func writeSummarySheet(f *excelize.File, s reconcile.Summary, loc *time.Location) error {
	rows := [][]any{
		{"Run", s.RunID},
		{"Started", s.Started.In(loc).Format(timefmt.WireLayout)},
		{"Finished", s.Finished.In(loc).Format(timefmt.WireLayout)},
		{"Dry Run", s.DryRun},
		{"Degraded", s.Degraded},
		{"Ledger Size", s.LedgerSize},
		{"Created", s.Created},
		{"Updated", s.Updated},
		{"Skipped", s.Skipped},
		{"Held", s.Held},
		{"Failed", s.Failed},
		{"Artifacts", s.Artifacts},
		{"Artifact Failures", s.ArtifactFailures},
		{"Jobs", s.Jobs},
	}
	for i, r := range rows {
		if err := setRow(f, SummarySheet, i+1, r...); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 20)
	_ = f.SetColWidth(SummarySheet, "B", "B", 40)
	return nil
}
