package dataprocessing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

var exportHeader = []interface{}{
	"ID", "Name", "Line: Type", "Line: Name", "Line: Title", "Line: Product Type",
	"Line: Product Tags", "Line: Price", "Line: Discount per Item", "Line: Discount",
	"Line: Variant Compare At Price", "Line: Total", "Line: Quantity", "Customer: Tags",
}

// writeWorkbook saves rows to a workbook with a single sheet.
func writeWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName(f.GetSheetName(0), sheet)

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "orders.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParser_ParseFile_XLSX(t *testing.T) {
	path := writeWorkbook(t, "Orders", [][]interface{}{
		exportHeader,
		{"A1", "#1001", "Line Item", "", "Slim Trouser", "", "suits, discount:2_each_$110", 100, 0, 0, 0, 200, 2, "cx-tier-tier-2"},
		{},
		{"A1", "#1001", "Discount", "UNIDAYS", "", "", "", "", "", -20, "", "", "", ""},
		{"B2", "#1002", "Line Item", "", "Oxford Shirt", "Shirts", "", "$1,100.50", "n/a", 0, "", "95.5", "1.0", ""},
	})

	parser := NewParser(nil, ParserConfig{})
	table, err := parser.ParseFile(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, table.Records, 3)
	assert.Len(t, table.Headers, len(exportHeader))
	for _, f := range domain.AllFields() {
		assert.True(t, table.HasField(f), "field %s should be mapped", f)
	}

	first := table.Records[0]
	assert.Equal(t, "A1", first.ID)
	assert.Equal(t, domain.LineTypeLineItem, first.Type)
	assert.Equal(t, "Slim Trouser", first.Title)
	assert.Equal(t, "", first.ProductType)
	assert.True(t, first.Total.Valid)
	assert.Equal(t, "200", first.Total.Decimal.String())
	assert.Equal(t, int64(2), first.Quantity)
	assert.Equal(t, "cx-tier-tier-2", first.CustomerTags)
	assert.Len(t, first.Cells, len(exportHeader))

	discount := table.Records[1]
	assert.Equal(t, domain.LineTypeDiscount, discount.Type)
	assert.Equal(t, "UNIDAYS", discount.Name)
	assert.False(t, discount.Price.Valid)
	assert.Equal(t, "-20", discount.Discount.Decimal.String())

	shirt := table.Records[2]
	assert.Equal(t, "1100.5", shirt.Price.Decimal.String())
	assert.False(t, shirt.DiscountPerItem.Valid, "text in a numeric column is a null value")
	assert.False(t, shirt.CompareAtPrice.Valid)
	assert.Equal(t, int64(1), shirt.Quantity)
}

func TestParser_ParseXLSX_Sheet(t *testing.T) {
	path := writeWorkbook(t, "Export", [][]interface{}{exportHeader})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	t.Run("named sheet", func(t *testing.T) {
		parser := NewParser(nil, ParserConfig{Sheet: "Export"})
		table, err := parser.ParseXLSX(context.Background(), strings.NewReader(string(data)))
		require.NoError(t, err)
		assert.Empty(t, table.Records)
	})

	t.Run("missing sheet", func(t *testing.T) {
		parser := NewParser(nil, ParserConfig{Sheet: "Sheet9"})
		_, err := parser.ParseXLSX(context.Background(), strings.NewReader(string(data)))
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := NewParser(nil, ParserConfig{}).ParseXLSX(context.Background(), strings.NewReader("ID,Line: Type"))
		assert.True(t, errors.IsType(err, errors.ErrTypeParsing))
	})
}

func TestParser_ParseCSV(t *testing.T) {
	input := "\ufeffID,Line: Type,Line: Title,Line: Total,Line: Quantity,Notes\n" +
		"A1,Line Item,Navy Jacket,350,1,gift\n" +
		",,,,,\n" +
		"A1,Shipping Line,Standard,\"(5.00)\"\n"

	table, err := NewParser(nil, ParserConfig{}).ParseCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Records, 2)
	assert.Equal(t, 0, table.Fields[domain.FieldID])
	assert.False(t, table.HasField(domain.FieldPrice))
	assert.Equal(t, "350", table.Records[0].Total.Decimal.String())
	assert.Equal(t, "-5", table.Records[1].Total.Decimal.String())
	assert.Equal(t, []string{"A1", "Shipping Line", "Standard", "(5.00)", "", ""}, table.Records[1].Cells)
}

func TestParser_OutputColumnsReplaced(t *testing.T) {
	input := "Promo Type,ID,Tier Group,Line: Type,Line: Title,Line: Total\n" +
		"Suit Multibuy,A1,Gold,Line Item,Navy Jacket,350\n"

	table, err := NewParser(nil, ParserConfig{}).ParseCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Line: Type", "Line: Title", "Line: Total"}, table.Headers)
	assert.Equal(t, 0, table.Fields[domain.FieldID])
	assert.Equal(t, 3, table.Fields[domain.FieldTotal])
	require.Len(t, table.Records, 1)
	assert.Equal(t, []string{"A1", "Line Item", "Navy Jacket", "350"}, table.Records[0].Cells)
	assert.Empty(t, table.Records[0].PromoType)
}

func TestParser_RowsWiderThanHeader(t *testing.T) {
	input := "ID,Line: Type,Line: Total\n" +
		"A1,Line Item,20,gift wrap\n" +
		"B2,Line Item,30,,\n"

	table, err := NewParser(nil, ParserConfig{}).ParseCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Line: Type", "Line: Total", ""}, table.Headers, "trailing blank cells do not widen")
	require.Len(t, table.Records, 2)
	assert.Equal(t, []string{"A1", "Line Item", "20", "gift wrap"}, table.Records[0].Cells)
	assert.Equal(t, []string{"B2", "Line Item", "30", ""}, table.Records[1].Cells)
}

func TestParser_ColumnOverrides(t *testing.T) {
	columns := DefaultColumns().Merge(map[string]string{"total": "Net Sales", "TITLE": "Product", "bogus": "x", "price": ""})
	input := "ID,Product,Net Sales,Line: Price\nA1,Navy Jacket,175,200\n"

	table, err := NewParser(nil, ParserConfig{Columns: columns}).ParseCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, table.Records, 1)
	assert.Equal(t, "Navy Jacket", table.Records[0].Title)
	assert.Equal(t, "175", table.Records[0].Total.Decimal.String())
	assert.Equal(t, "200", table.Records[0].Price.Decimal.String())
	assert.Equal(t, "Line: Total", DefaultColumns()[domain.FieldTotal], "merge must not modify the receiver")
}

func TestParser_Errors(t *testing.T) {
	parser := NewParser(nil, ParserConfig{})

	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"only blank rows", ",,\n,,\n"},
		{"unknown headers", "foo,bar\n1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parser.ParseCSV(context.Background(), strings.NewReader(tt.input))
			assert.True(t, errors.IsType(err, errors.ErrTypeParsing))
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "orders.txt")
		require.NoError(t, os.WriteFile(path, []byte("ID\n1\n"), 0o644))
		_, err := parser.ParseFile(context.Background(), path)
		assert.True(t, errors.IsType(err, errors.ErrTypeParsing))
	})
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"12.50", "12.5", true},
		{" $1,234.00 ", "1234", true},
		{"-174.50", "-174.5", true},
		{"(30)", "-30", true},
		{"", "", false},
		{"N/A", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseDecimal(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.Equal(t, tt.want, got.Decimal.String())
			}
		})
	}
}
