package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineType identifies what kind of order line a record represents.
type LineType string

const (
	LineTypeLineItem LineType = "Line Item"
	LineTypeShipping LineType = "Shipping Line"
	LineTypeDiscount LineType = "Discount"
)

// Field names a semantic column of the transaction export.
type Field string

const (
	FieldID              Field = "id"
	FieldType            Field = "type"
	FieldName            Field = "name"
	FieldTitle           Field = "title"
	FieldProductType     Field = "product_type"
	FieldProductTags     Field = "product_tags"
	FieldCustomerTags    Field = "customer_tags"
	FieldPrice           Field = "price"
	FieldDiscountPerItem Field = "discount_per_item"
	FieldDiscount        Field = "discount"
	FieldCompareAtPrice  Field = "compare_at_price"
	FieldTotal           Field = "total"
	FieldQuantity        Field = "quantity"
)

// AllFields lists every field in export column order.
func AllFields() []Field {
	return []Field{
		FieldID, FieldType, FieldName, FieldTitle, FieldProductType, FieldProductTags,
		FieldCustomerTags, FieldPrice, FieldDiscountPerItem, FieldDiscount,
		FieldCompareAtPrice, FieldTotal, FieldQuantity,
	}
}

// LineRecord represents one row of the transaction export.
// Empty strings stand for null text cells. Numeric fields are NullDecimal so that
// null and unparsable cells (Valid == false) can be told apart from zero.
type LineRecord struct {
	ID              string              `json:"id" validate:"required"`
	Type            LineType            `json:"type" validate:"required"`
	Name            string              `json:"name,omitempty"`
	Title           string              `json:"title,omitempty"`
	ProductType     string              `json:"product_type,omitempty"`
	ProductTags     string              `json:"product_tags,omitempty"`
	CustomerTags    string              `json:"customer_tags,omitempty"`
	Price           decimal.NullDecimal `json:"price"`
	DiscountPerItem decimal.NullDecimal `json:"discount_per_item"`
	Discount        decimal.NullDecimal `json:"discount"`
	CompareAtPrice  decimal.NullDecimal `json:"compare_at_price"`
	Total           decimal.NullDecimal `json:"total"`
	Quantity        int64               `json:"quantity"`

	// Cells holds the source row as read, in Table.Headers order.
	Cells []string `json:"-"`

	// Output columns written by the classification engine.
	PromoType PromoLabel `json:"promo_type"`
	TierGroup TierGroup  `json:"tier_group"`
}

// Clone returns a deep copy of the record.
func (r LineRecord) Clone() LineRecord {
	if r.Cells != nil {
		cells := make([]string, len(r.Cells))
		copy(cells, r.Cells)
		r.Cells = cells
	}
	return r
}

// Headers of the columns the engine writes in front of the source columns.
const (
	ColumnPromoType = "Promo Type"
	ColumnTierGroup = "Tier Group"
)

// IsOutputColumn reports whether header names an engine output column, so a
// previously classified report can be read back without stacking a second pair.
func IsOutputColumn(header string) bool {
	h := strings.TrimSpace(header)
	return strings.EqualFold(h, ColumnPromoType) || strings.EqualFold(h, ColumnTierGroup)
}

// Table is a parsed transaction export.
type Table struct {
	// Headers are the source column names in their original order.
	Headers []string `json:"headers"`

	// Fields maps each semantic field the source exposes to its column index in Headers.
	Fields map[Field]int `json:"-"`

	Records []LineRecord `json:"records"`
}

// HasField reports whether the table exposes the given field.
func (t *Table) HasField(f Field) bool {
	if t == nil || t.Fields == nil {
		return false
	}
	_, ok := t.Fields[f]
	return ok
}

// MissingFields returns the fields from want that the table does not expose,
// preserving the order of want and dropping duplicates.
func (t *Table) MissingFields(want []Field) []Field {
	seen := make(map[Field]bool, len(want))
	var missing []Field
	for _, f := range want {
		if seen[f] {
			continue
		}
		seen[f] = true
		if !t.HasField(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Headers: append([]string(nil), t.Headers...),
		Fields:  make(map[Field]int, len(t.Fields)),
		Records: make([]LineRecord, len(t.Records)),
	}
	for f, idx := range t.Fields {
		out.Fields[f] = idx
	}
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// NewTable builds a table whose fields are laid out in AllFields order.
// It is the shape used for rows that did not come from a spreadsheet.
func NewTable(records []LineRecord) *Table {
	fields := AllFields()
	t := &Table{
		Headers: make([]string, len(fields)),
		Fields:  make(map[Field]int, len(fields)),
		Records: records,
	}
	for i, f := range fields {
		t.Headers[i] = string(f)
		t.Fields[f] = i
	}
	return t
}
