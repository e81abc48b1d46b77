package promo

import (
	"regexp"

	"github.com/shopspring/decimal"

	"promocli/pkg/contracts/domain"
)

// Promo code names that mark a whole order as a student-discount order.
var promoCodeNames = map[string]bool{
	"UNIDAYS":   true,
	"UNIDAYS20": true,
}

var (
	quarterBand    = band("0.24", "0.26")
	fortyBand      = band("0.39", "0.41")
	thirtyBand     = band("0.29", "0.31")
	sublimeSuitsRe = regexp.MustCompile(`(?i)\bautomatic:(\$399|\$599) Suits\b`)
	sublimeDPI     = mustDecimals("-174.50", "-199.50", "-249.50")
	shirtDPI       = decimal.NewFromInt(-30)
	teeUnit        = decimal.NewFromInt(40)
	chinoUnit      = decimal.NewFromInt(110)
	linenUnit      = decimal.NewFromInt(130)
	poloUnit       = decimal.RequireFromString("109.99")
	suitTotals     = mustDecimals("175", "200", "275", "350", "400", "425", "575", "700")
)

type ratioBand struct{ lo, hi decimal.Decimal }

func band(lo, hi string) ratioBand {
	return ratioBand{lo: decimal.RequireFromString(lo), hi: decimal.RequireFromString(hi)}
}

func (b ratioBand) contains(r *domain.LineRecord) bool {
	return ratioBetween(r, b.lo, b.hi)
}

var ratioFields = []domain.Field{domain.FieldPrice, domain.FieldDiscountPerItem, domain.FieldCompareAtPrice}

func withFields(base []domain.Field, extra ...domain.Field) []domain.Field {
	out := make([]domain.Field, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func builtin(label domain.PromoLabel, alias string, requires []domain.Field, match func(r *domain.LineRecord) bool) rowRule {
	return rowRule{
		ruleMeta: ruleMeta{name: string(label), aliases: []string{alias}, label: label, requires: requires},
		match:    match,
	}
}

// BuiltinRules returns the built-in rules in rank order.
func BuiltinRules() []Rule {
	return []Rule{
		builtin(domain.LabelTAF25, "TAF25", ratioFields, func(r *domain.LineRecord) bool {
			return quarterBand.contains(r) && isPositive(r.CompareAtPrice)
		}),
		builtin(domain.LabelSelectedStyles25, "25% Off Selected Styles", ratioFields, func(r *domain.LineRecord) bool {
			return quarterBand.contains(r) && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelChinos25, "Chinos 25%", withFields(ratioFields, domain.FieldProductType), func(r *domain.LineRecord) bool {
			return quarterBand.contains(r) && containsFold(r.ProductType, "Chino") && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelCoats25, "Coats 25%", withFields(ratioFields, domain.FieldProductType), func(r *domain.LineRecord) bool {
			return quarterBand.contains(r) && containsFold(r.ProductType, "Outerwear") && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelTailoring25, "Tailoring 25%", withFields(ratioFields, domain.FieldProductTags), func(r *domain.LineRecord) bool {
			return quarterBand.contains(r) && hasToken(r.ProductTags, "25OFFWINTERTAILORING") && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelTailoring40, "Tailoring 40%", withFields(ratioFields, domain.FieldProductTags), func(r *domain.LineRecord) bool {
			return fortyBand.contains(r) && hasToken(r.ProductTags, "40_Off_Tailoring_May24") && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelKnitsOffer, "Knits 25%", withFields(ratioFields, domain.FieldProductType), func(r *domain.LineRecord) bool {
			return quarterBand.contains(r) && containsFold(r.ProductType, "Knitwear") && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelCasualBottomMultibuy, "Casual Bottom", withFields(ratioFields, domain.FieldProductType), func(r *domain.LineRecord) bool {
			return thirtyBand.contains(r) && containsFold(r.ProductType, "Chino") && isZero(r.CompareAtPrice)
		}),
		builtin(domain.LabelFiftyFifty, "50/50 Styles", []domain.Field{domain.FieldProductTags}, func(r *domain.LineRecord) bool {
			return hasToken(r.ProductTags, "5050Jul24")
		}),
		builtin(domain.LabelSublimeSuits, "Sublime Suits", []domain.Field{domain.FieldProductTags, domain.FieldDiscountPerItem}, func(r *domain.LineRecord) bool {
			return r.ProductTags != "" && sublimeSuitsRe.MatchString(r.ProductTags) && equalsAny(r.DiscountPerItem, sublimeDPI)
		}),
		builtin(domain.LabelGiftCard, "Gift Card", []domain.Field{domain.FieldTitle}, func(r *domain.LineRecord) bool {
			return r.Title == "Gift Card"
		}),
		builtin(domain.LabelMDPurchase, "MD Purchase", []domain.Field{domain.FieldType, domain.FieldCompareAtPrice}, func(r *domain.LineRecord) bool {
			return r.Type == domain.LineTypeLineItem && r.CompareAtPrice.Valid && !r.CompareAtPrice.Decimal.IsZero()
		}),
		PromoCodeRule(),
		builtin(domain.LabelTeeMultibuy, "Tee Multibuy", []domain.Field{domain.FieldTitle, domain.FieldTotal}, func(r *domain.LineRecord) bool {
			return containsFold(r.Title, "Mattia") && r.Total.Valid && !r.Total.Decimal.IsZero() && multipleOf(r.Total, teeUnit)
		}),
		builtin(domain.LabelShirtsMultibuy, "Shirts Multibuy", []domain.Field{domain.FieldProductType, domain.FieldDiscountPerItem}, func(r *domain.LineRecord) bool {
			return containsFold(r.ProductType, "Shirts") && equals(r.DiscountPerItem, shirtDPI)
		}),
		builtin(domain.LabelChinoMultibuy, "Chino Multibuy", []domain.Field{domain.FieldProductTags, domain.FieldTotal}, func(r *domain.LineRecord) bool {
			return hasToken(r.ProductTags, "discount:2_each_$110") && multipleOf(r.Total, chinoUnit)
		}),
		builtin(domain.LabelLinenShirtsMultibuy, "Linen Shirts Multibuy", []domain.Field{domain.FieldProductTags, domain.FieldTotal}, func(r *domain.LineRecord) bool {
			return hasToken(r.ProductTags, "discount:2_each_$130") && multipleOf(r.Total, linenUnit)
		}),
		builtin(domain.LabelPoloMultibuy, "Polo Multibuy", []domain.Field{domain.FieldProductTags, domain.FieldTotal}, func(r *domain.LineRecord) bool {
			return hasToken(r.ProductTags, "discount:2_each_$109") && multipleOf(r.Total, poloUnit)
		}),
		FPPurchaseRule(),
		SuitMultibuyRule(),
	}
}

// PromoCodeRule labels every row of an order that carries a student promo code line.
func PromoCodeRule() DatasetRule {
	return datasetRule{
		ruleMeta: ruleMeta{
			name:     string(domain.LabelPromoCode),
			aliases:  []string{"UNIDAYS"},
			label:    domain.LabelPromoCode,
			requires: []domain.Field{domain.FieldID, domain.FieldType, domain.FieldName},
		},
		selectRows: func(rows []domain.LineRecord) []int {
			orders := make(map[string]bool)
			for i := range rows {
				if rows[i].Type != domain.LineTypeLineItem && promoCodeNames[rows[i].Name] {
					orders[rows[i].ID] = true
				}
			}
			if len(orders) == 0 {
				return nil
			}
			var idx []int
			for i := range rows {
				if orders[rows[i].ID] {
					idx = append(idx, i)
				}
			}
			return idx
		},
	}
}

// FPPurchaseRule labels full-price rows: no compare-at price and no discount.
// Rows already labelled Promo Code are never candidates.
func FPPurchaseRule() DatasetRule {
	return datasetRule{
		ruleMeta: ruleMeta{
			name:     string(domain.LabelFPPurchase),
			aliases:  []string{"Full Price"},
			label:    domain.LabelFPPurchase,
			requires: []domain.Field{domain.FieldCompareAtPrice, domain.FieldDiscount, domain.FieldDiscountPerItem},
		},
		selectRows: func(rows []domain.LineRecord) []int {
			var idx []int
			for i := range rows {
				r := &rows[i]
				if r.PromoType == domain.LabelPromoCode {
					continue
				}
				if isZero(r.CompareAtPrice) && isZero(r.Discount) && isZero(r.DiscountPerItem) {
					idx = append(idx, i)
				}
			}
			return idx
		},
	}
}

// SuitMultibuyRule matches jacket and trouser lines sold at a suit bundle price.
func SuitMultibuyRule() RowRule {
	return builtin(domain.LabelSuitMultibuy, "Suit Multibuy", []domain.Field{domain.FieldTitle, domain.FieldTotal}, isSuitMultibuy)
}

func isSuitMultibuy(r *domain.LineRecord) bool {
	return containsAnyFold(r.Title, "Jacket", "Trouser") && equalsAny(r.Total, suitTotals)
}

// DefaultCatalog returns a catalog holding the built-in rules in rank order.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, rule := range BuiltinRules() {
		// Built-in names are unique; a failure here is a programming error.
		if err := c.Register(rule); err != nil {
			panic(err)
		}
	}
	return c
}
