package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// WriteXLSX renders the report as an XLSX workbook: a summary sheet
// with job metadata and per-agent insights, then one sheet of data
// records per agent that returned any.
func WriteXLSX(r *Report, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	rows := [][]any{
		{"Query", r.Query},
		{"Job ID", r.JobID},
		{"Status", string(r.Status)},
		{"Coverage", r.Coverage},
		{"Generated At", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{},
		{"Agent", "Source", "Confidence", "Insights"},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	rowIdx := len(rows) + 1
	for _, name := range r.AgentNames() {
		var row []any
		if res, ok := r.Results[name]; ok {
			row = []any{res.Agent, string(res.Source), res.Confidence, res.Insights}
		} else if note, ok := r.Failures[name]; ok {
			row = []any{note.Agent, "unavailable", 0.0, note.Detail}
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", rowIdx), &row); err != nil {
			return fmt.Errorf("failed to write agent row: %w", err)
		}
		rowIdx++
	}

	for _, name := range r.AgentNames() {
		res, ok := r.Results[name]
		if !ok || len(res.Data) == 0 {
			continue
		}
		if err := writeDataSheet(f, name, res.Data); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeDataSheet(f *excelize.File, name string, data []map[string]any) error {
	// Sheet names are capped at 31 chars by the format.
	sheet := name
	if len(sheet) > 31 {
		sheet = sheet[:31]
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}

	// Stable column order across all records.
	colSet := make(map[string]struct{})
	for _, rec := range data {
		for k := range rec {
			colSet[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", sheet, err)
	}

	for i, rec := range data {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("failed to write record for %s: %w", sheet, err)
		}
	}
	return nil
}
