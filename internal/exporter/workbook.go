package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

// Sheet names of the report workbook.
const (
	SheetClassified   = "Sheet1"
	SheetAnalysis     = "Promo Analysis"
	SheetDistribution = "Promo Distribution"
)

// MoneyFormat is the number format of the Sales $ columns.
const MoneyFormat = "$#,##0"

// Report bundles what the workbook shows.
type Report struct {
	Table        *domain.Table
	Summary      domain.PromoSummary
	Distribution []domain.CategorySummary
}

// WorkbookWriter renders reports as xlsx workbooks.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger.With(slog.String("component", "workbook_writer"))}
}

// WriteFile saves the report workbook at path.
func (w *WorkbookWriter) WriteFile(ctx context.Context, path string, report Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create workbook file", err)
	}
	if err := w.Write(ctx, f, report); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return errors.NewStorageError("failed to close workbook file", err)
	}

	w.logger.InfoContext(ctx, "wrote report workbook", slog.String("path", path))
	return nil
}

// Write renders the report workbook to out.
func (w *WorkbookWriter) Write(ctx context.Context, out io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if report.Table == nil {
		report.Table = &domain.Table{}
	}

	if err := w.writeClassified(ctx, f, report.Table); err != nil {
		return err
	}

	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(MoneyFormat)})
	if err != nil {
		return errors.NewStorageError("failed to create money style", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.NewStorageError("failed to create header style", err)
	}

	if err := w.writeAnalysis(f, report.Summary, money, bold); err != nil {
		return err
	}
	if err := w.writeDistribution(f, report.Distribution, money, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(out); err != nil {
		return errors.NewStorageError("failed to write workbook", err)
	}

	w.logger.DebugContext(ctx, "rendered workbook",
		slog.Int("rows", len(report.Table.Records)),
		slog.Int("categories", len(report.Summary.Categories)))
	return nil
}

// writeClassified streams the classified rows into the default sheet.
func (w *WorkbookWriter) writeClassified(ctx context.Context, f *excelize.File, table *domain.Table) error {
	sw, err := f.NewStreamWriter(SheetClassified)
	if err != nil {
		return errors.NewStorageError("failed to open sheet stream", err)
	}

	if err := sw.SetRow("A1", toRow(classifiedHeaders(table))); err != nil {
		return errors.NewStorageError("failed to write sheet header", err)
	}

	for i := range table.Records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		r := &table.Records[i]
		row := make([]interface{}, 0, len(r.Cells)+2)
		row = append(row, string(r.PromoType), string(r.TierGroup))
		for _, c := range r.Cells {
			row = append(row, cellValue(c))
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write row %d", i+2), err)
		}
	}

	if err := sw.Flush(); err != nil {
		return errors.NewStorageError("failed to flush sheet", err)
	}
	return nil
}

func (w *WorkbookWriter) writeAnalysis(f *excelize.File, summary domain.PromoSummary, money, bold int) error {
	if _, err := f.NewSheet(SheetAnalysis); err != nil {
		return errors.NewStorageError("failed to add analysis sheet", err)
	}

	rows := [][]interface{}{{"Promo Type", "Sales $", "Quantity"}}
	for _, c := range summary.Rows() {
		rows = append(rows, []interface{}{c.Category, c.Total.InexactFloat64(), c.Quantity})
	}
	if err := setRows(f, SheetAnalysis, rows); err != nil {
		return err
	}

	last := len(rows)
	if err := f.SetCellStyle(SheetAnalysis, "A1", "C1", bold); err != nil {
		return errors.NewStorageError("failed to style analysis header", err)
	}
	if err := f.SetCellStyle(SheetAnalysis, "B2", fmt.Sprintf("B%d", last), money); err != nil {
		return errors.NewStorageError("failed to style analysis totals", err)
	}
	if err := f.SetColWidth(SheetAnalysis, "A", "A", 28); err != nil {
		return errors.NewStorageError("failed to size analysis columns", err)
	}
	return nil
}

func (w *WorkbookWriter) writeDistribution(f *excelize.File, dist []domain.CategorySummary, money, bold int) error {
	if _, err := f.NewSheet(SheetDistribution); err != nil {
		return errors.NewStorageError("failed to add distribution sheet", err)
	}

	rows := [][]interface{}{{"Promo Type", "Sales $", "Share %"}}
	for _, c := range dist {
		rows = append(rows, []interface{}{c.Category, c.Total.InexactFloat64(), c.SharePercent(2).InexactFloat64()})
	}
	if err := setRows(f, SheetDistribution, rows); err != nil {
		return err
	}

	if err := f.SetCellStyle(SheetDistribution, "A1", "C1", bold); err != nil {
		return errors.NewStorageError("failed to style distribution header", err)
	}
	if len(rows) > 1 {
		if err := f.SetCellStyle(SheetDistribution, "B2", fmt.Sprintf("B%d", len(rows)), money); err != nil {
			return errors.NewStorageError("failed to style distribution totals", err)
		}
	}
	return nil
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write %s row %d", sheet, i+1), err)
		}
	}
	return nil
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

func strPtr(s string) *string { return &s }
