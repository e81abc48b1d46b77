package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SummaryHeaders are the columns of the csv summary.
var SummaryHeaders = []string{"Promo Type", "Sales $", "Quantity", "Share %"}

// CSVWriter writes promo summaries and classified tables as UTF-8 csv with
// a BOM, so Excel opens them with the right encoding.
type CSVWriter struct {
	logger *slog.Logger
}

func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteSummary writes the promo summary, Total row included, to out.
func (w *CSVWriter) WriteSummary(out io.Writer, summary domain.PromoSummary) error {
	return encode(out, SummaryHeaders, SummaryRecords(summary), true)
}

// WriteSummaryFile writes the promo summary to a csv file.
func (w *CSVWriter) WriteSummaryFile(filePath string, summary domain.PromoSummary) error {
	rows, err := w.OpenRows(filePath, SummaryHeaders)
	if err != nil {
		return err
	}
	for _, rec := range SummaryRecords(summary) {
		if err := rows.Write(rec); err != nil {
			rows.Abort()
			return errors.NewStorageError("failed to write summary csv", err)
		}
	}
	if err := rows.Close(); err != nil {
		os.Remove(filePath)
		return errors.NewStorageError("failed to flush summary csv", err)
	}
	return nil
}

// WriteClassified streams a classified table to a csv file: Promo Type and
// Tier Group first, then the source columns as read.
func (w *CSVWriter) WriteClassified(ctx context.Context, filePath string, table *domain.Table) error {
	rows, err := w.OpenRows(filePath, classifiedHeaders(table))
	if err != nil {
		return err
	}

	for i := range table.Records {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				rows.Abort()
				return err
			}
		}
		r := &table.Records[i]
		row := make([]string, 0, len(r.Cells)+2)
		row = append(row, string(r.PromoType), string(r.TierGroup))
		row = append(row, r.Cells...)
		if err := rows.Write(row); err != nil {
			rows.Abort()
			return errors.NewStorageError(fmt.Sprintf("failed to write record %d", i), err)
		}
	}

	if err := rows.Close(); err != nil {
		os.Remove(filePath)
		return errors.NewStorageError("failed to flush classified csv", err)
	}
	return nil
}

// SummaryRecords renders summary rows as csv records.
func SummaryRecords(summary domain.PromoSummary) [][]string {
	rows := summary.Rows()
	records := make([][]string, 0, len(rows))
	for _, c := range rows {
		records = append(records, []string{
			c.Category,
			formatMoney(c.Total),
			formatInt(c.Quantity),
			formatPercent(c.Share),
		})
	}
	return records
}

func classifiedHeaders(table *domain.Table) []string {
	headers := make([]string, 0, len(table.Headers)+2)
	headers = append(headers, domain.ColumnPromoType, domain.ColumnTierGroup)
	return append(headers, table.Headers...)
}

func encode(out io.Writer, headers []string, records [][]string, bom bool) error {
	if bom {
		if _, err := out.Write(utf8BOM); err != nil {
			return err
		}
	}
	cw := csv.NewWriter(out)
	if len(headers) > 0 {
		records = append([][]string{headers}, records...)
	}
	return cw.WriteAll(records)
}

// RowWriter appends records to a csv file opened by OpenRows.
type RowWriter struct {
	file *os.File
	csv  *csv.Writer
	path string
	rows int
}

// OpenRows creates filePath, and any missing parent directories, writing the
// BOM and headers up front.
func (w *CSVWriter) OpenRows(filePath string, headers []string) (*RowWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, errors.NewStorageError("failed to create directory", err)
	}
	f, err := os.Create(filePath)
	if err != nil {
		return nil, errors.NewStorageError("failed to create csv file", err)
	}

	rw := &RowWriter{file: f, csv: csv.NewWriter(f), path: filePath}
	if _, err := f.Write(utf8BOM); err != nil {
		rw.Abort()
		return nil, errors.NewStorageError("failed to write csv", err)
	}
	if len(headers) > 0 {
		if err := rw.csv.Write(headers); err != nil {
			rw.Abort()
			return nil, errors.NewStorageError("failed to write csv headers", err)
		}
	}

	w.logger.Debug("csv opened", slog.String("file_path", filePath), slog.Int("columns", len(headers)))
	return rw, nil
}

// Write buffers one record.
func (r *RowWriter) Write(record []string) error {
	r.rows++
	return r.csv.Write(record)
}

// Rows is the number of records written after the headers.
func (r *RowWriter) Rows() int {
	return r.rows
}

// Close flushes and closes the file. The first error wins.
func (r *RowWriter) Close() error {
	r.csv.Flush()
	flushErr := r.csv.Error()
	closeErr := r.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Abort closes and deletes the file, leaving no partial csv behind.
func (r *RowWriter) Abort() {
	r.file.Close()
	os.Remove(r.path)
}
