package promo

import (
	"github.com/shopspring/decimal"

	"promocli/pkg/contracts/domain"
)

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

var null = decimal.NullDecimal{}

// fullPrice returns a full-price line item; mutators adjust it per case.
func fullPrice(mutators ...func(r *domain.LineRecord)) domain.LineRecord {
	r := domain.LineRecord{
		ID:              "#1001",
		Type:            domain.LineTypeLineItem,
		Name:            "#1001",
		Title:           "Oxford Shirt",
		ProductType:     "Shirts",
		Price:           dec("100"),
		DiscountPerItem: dec("0"),
		Discount:        dec("0"),
		CompareAtPrice:  dec("0"),
		Total:           dec("100"),
		Quantity:        1,
	}
	for _, m := range mutators {
		m(&r)
	}
	return r
}

func labels(t *domain.Table) []domain.PromoLabel {
	out := make([]domain.PromoLabel, len(t.Records))
	for i, r := range t.Records {
		out[i] = r.PromoType
	}
	return out
}
