package dataprocessing

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

// Parser reads order exports into tables.
type Parser struct {
	logger  *slog.Logger
	columns ColumnMap
	sheet   string
}

// ParserConfig holds configuration options for the Parser.
type ParserConfig struct {
	Columns ColumnMap // Header names per field; DefaultColumns when nil
	Sheet   string    // Worksheet to read; the first sheet when empty
}

// NewParser creates a parser with the given configuration.
func NewParser(logger *slog.Logger, config ParserConfig) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Columns == nil {
		config.Columns = DefaultColumns()
	}
	return &Parser{
		logger:  logger.With(slog.String("component", "parser")),
		columns: config.Columns,
		sheet:   config.Sheet,
	}
}

// ParseFile reads an xlsx or csv export, chosen by file extension.
func (p *Parser) ParseFile(ctx context.Context, path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return p.ParseXLSX(ctx, f)
	case ".csv":
		return p.ParseCSV(ctx, f)
	default:
		return nil, errors.NewParsingError(fmt.Sprintf("unsupported file type %q", filepath.Ext(path)), nil)
	}
}

// ParseXLSX reads the configured worksheet of a workbook.
func (p *Parser) ParseXLSX(ctx context.Context, r io.Reader) (*domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewParsingError("failed to open workbook", err)
	}
	defer f.Close()

	sheet := p.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewParsingError("workbook has no sheets", nil)
		}
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("sheet %q", sheet))
	}

	// Raw values keep numbers free of display formats such as "$#,##0".
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}

	p.logger.DebugContext(ctx, "read worksheet",
		slog.String("sheet", sheet),
		slog.Int("rows", len(rows)))

	return p.FromRows(ctx, rows)
}

// ParseCSV reads a comma separated export with a header line.
func (p *Parser) ParseCSV(ctx context.Context, r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError("failed to read csv", err)
	}
	return p.FromRows(ctx, rows)
}

// FromRows builds a table from raw rows. The first non-empty row is the header.
// Fully empty rows are skipped; short rows are padded to the header width and
// cells past it get an unnamed column. Promo Type and Tier Group columns from
// an earlier run are dropped, since the writers put fresh ones in front.
func (p *Parser) FromRows(ctx context.Context, rows [][]string) (*domain.Table, error) {
	headerRow := -1
	for i, row := range rows {
		if !isBlank(row) {
			headerRow = i
			break
		}
	}
	if headerRow == -1 {
		return nil, errors.NewParsingError("input has no header row", nil)
	}

	raw := rows[headerRow]
	width := len(raw)
	for _, row := range rows[headerRow+1:] {
		if n := usedWidth(row); n > width {
			width = n
		}
	}

	// keep holds the source position of every retained column.
	keep := make([]int, 0, width)
	headers := make([]string, 0, width)
	replaced := 0
	for i := 0; i < width; i++ {
		var h string
		if i < len(raw) {
			h = strings.TrimSpace(strings.TrimPrefix(raw[i], "\ufeff"))
		}
		if domain.IsOutputColumn(h) {
			replaced++
			continue
		}
		keep = append(keep, i)
		headers = append(headers, h)
	}

	fields := p.columns.resolve(headers)
	if len(fields) == 0 {
		return nil, errors.NewParsingError("no recognised columns in header", nil).
			WithContext("headers", headers)
	}

	table := &domain.Table{
		Headers: headers,
		Fields:  fields,
		Records: make([]domain.LineRecord, 0, len(rows)-headerRow-1),
	}

	unparsable := 0
	for i := headerRow + 1; i < len(rows); i++ {
		if isBlank(rows[i]) {
			continue
		}
		cells := make([]string, len(keep))
		for j, src := range keep {
			if src < len(rows[i]) {
				cells[j] = rows[i][src]
			}
		}

		rec, bad := p.record(cells, fields)
		unparsable += bad
		table.Records = append(table.Records, rec)
	}

	mapped := make([]string, 0, len(fields))
	for f := range fields {
		mapped = append(mapped, string(f))
	}
	p.logger.InfoContext(ctx, "parsed export",
		slog.Int("records", len(table.Records)),
		slog.Int("columns", len(headers)),
		slog.Any("mapped_fields", mapped),
		slog.Int("unparsable_numbers", unparsable),
		slog.Int("unnamed_columns", width-len(raw)),
		slog.Int("replaced_output_columns", replaced))

	return table, nil
}

// usedWidth is the row length without trailing blank cells.
func usedWidth(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}

// record converts one padded row. bad counts numeric cells that held text.
func (p *Parser) record(cells []string, fields map[domain.Field]int) (domain.LineRecord, int) {
	text := func(f domain.Field) string {
		if idx, ok := fields[f]; ok && idx < len(cells) {
			return strings.TrimSpace(cells[idx])
		}
		return ""
	}

	bad := 0
	number := func(f domain.Field) decimal.NullDecimal {
		raw := text(f)
		v := ParseDecimal(raw)
		if !v.Valid && raw != "" {
			bad++
		}
		return v
	}

	rec := domain.LineRecord{
		ID:              text(domain.FieldID),
		Type:            domain.LineType(text(domain.FieldType)),
		Name:            text(domain.FieldName),
		Title:           text(domain.FieldTitle),
		ProductType:     text(domain.FieldProductType),
		ProductTags:     text(domain.FieldProductTags),
		CustomerTags:    text(domain.FieldCustomerTags),
		Price:           number(domain.FieldPrice),
		DiscountPerItem: number(domain.FieldDiscountPerItem),
		Discount:        number(domain.FieldDiscount),
		CompareAtPrice:  number(domain.FieldCompareAtPrice),
		Total:           number(domain.FieldTotal),
		Quantity:        parseQuantity(text(domain.FieldQuantity)),
		Cells:           cells,
	}
	return rec, bad
}

// ParseDecimal parses a money cell. Currency symbols, thousands separators and
// accounting parentheses are accepted. Empty or unparsable input yields an
// invalid NullDecimal.
func ParseDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}
	return decimal.NewNullDecimal(d)
}

// parseQuantity reads an integer count, tolerating "2.0" style cells.
func parseQuantity(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if d := ParseDecimal(s); d.Valid {
		return d.Decimal.IntPart()
	}
	return 0
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
