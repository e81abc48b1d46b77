package dataprocessing

import (
	"strings"

	"promocli/pkg/contracts/domain"
)

// ColumnMap names the export header that carries each field.
type ColumnMap map[domain.Field]string

// DefaultColumns returns the header names of the standard order export.
func DefaultColumns() ColumnMap {
	return ColumnMap{
		domain.FieldID:              "ID",
		domain.FieldType:            "Line: Type",
		domain.FieldName:            "Line: Name",
		domain.FieldTitle:           "Line: Title",
		domain.FieldProductType:     "Line: Product Type",
		domain.FieldProductTags:     "Line: Product Tags",
		domain.FieldCustomerTags:    "Customer: Tags",
		domain.FieldPrice:           "Line: Price",
		domain.FieldDiscountPerItem: "Line: Discount per Item",
		domain.FieldDiscount:        "Line: Discount",
		domain.FieldCompareAtPrice:  "Line: Variant Compare At Price",
		domain.FieldTotal:           "Line: Total",
		domain.FieldQuantity:        "Line: Quantity",
	}
}

// Merge returns a copy of m with the non-empty entries of overrides applied.
// Override keys are matched against field names ignoring case.
func (m ColumnMap) Merge(overrides map[string]string) ColumnMap {
	out := make(ColumnMap, len(m))
	for f, h := range m {
		out[f] = h
	}
	for key, header := range overrides {
		if strings.TrimSpace(header) == "" {
			continue
		}
		for _, f := range domain.AllFields() {
			if strings.EqualFold(string(f), strings.TrimSpace(key)) {
				out[f] = header
			}
		}
	}
	return out
}

// resolve maps header positions onto fields. Header names compare
// case-insensitively after trimming; the first matching column wins.
func (m ColumnMap) resolve(headers []string) map[domain.Field]int {
	byName := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := byName[key]; !seen {
			byName[key] = i
		}
	}

	fields := make(map[domain.Field]int, len(m))
	for f, header := range m {
		if idx, ok := byName[strings.ToLower(strings.TrimSpace(header))]; ok {
			fields[f] = idx
		}
	}
	return fields
}
