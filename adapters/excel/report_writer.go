package excel

import (
	"context"
	"fmt"
	"log"

	"github.com/xuri/excelize/v2"

	"biascope/domain/bias"
	"biascope/internal/errors"
	"biascope/ports"
)

// ReportWriter exports a BiasReport to an xlsx workbook with one sheet of
// per-variable metric results and one of composite scores.
type ReportWriter struct {
	path string
}

// NewReportWriter creates a writer targeting the given file path
func NewReportWriter(path string) *ReportWriter {
	return &ReportWriter{path: path}
}

var _ ports.ReportSink = (*ReportWriter)(nil)

// Write renders the report and saves the workbook.
func (w *ReportWriter) Write(ctx context.Context, report *bias.BiasReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const metricsSheet = "Metrics"
	f.SetSheetName("Sheet1", metricsSheet)

	headers := []string{"Variable", "Metric", "Value", "Valid", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(metricsSheet, cell, h); err != nil {
			return errors.ExportError("xlsx", err)
		}
	}
	for row, res := range report.Results {
		values := []interface{}{
			res.Variable.String(),
			res.Metric,
			nil,
			res.Valid,
			string(res.Reason),
		}
		if res.Valid {
			values[2] = res.Value
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(metricsSheet, cell, v); err != nil {
				return errors.ExportError("xlsx", err)
			}
		}
	}

	const compositeSheet = "Composites"
	if _, err := f.NewSheet(compositeSheet); err != nil {
		return errors.ExportError("xlsx", err)
	}
	compositeHeaders := []string{"Method", "Value", "Reason", "Contributing Variables"}
	for i, h := range compositeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(compositeSheet, cell, h); err != nil {
			return errors.ExportError("xlsx", err)
		}
	}
	for row, comp := range report.Composites {
		cell, _ := excelize.CoordinatesToCellName(1, row+2)
		f.SetCellValue(compositeSheet, cell, string(comp.Method))
		if comp.Value != nil {
			cell, _ = excelize.CoordinatesToCellName(2, row+2)
			f.SetCellValue(compositeSheet, cell, *comp.Value)
		}
		cell, _ = excelize.CoordinatesToCellName(3, row+2)
		f.SetCellValue(compositeSheet, cell, string(comp.Reason))
		cell, _ = excelize.CoordinatesToCellName(4, row+2)
		f.SetCellValue(compositeSheet, cell, contributorList(comp))
	}

	if err := f.SaveAs(w.path); err != nil {
		return errors.ExportError("xlsx", err)
	}
	log.Printf("[ReportWriter] report %s exported to %s", report.ID, w.path)
	return nil
}

func contributorList(comp bias.CompositeScore) string {
	out := ""
	for i, c := range comp.Contributions {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s (w=%.3f)", c.Variable, c.Weight)
	}
	return out
}
