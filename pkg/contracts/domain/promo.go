package domain

import (
	"github.com/shopspring/decimal"
)

// PromoLabel is the promotion category written into the Promo Type column.
type PromoLabel string

// Built-in promotion labels.
const (
	LabelTAF25                PromoLabel = "TAF25"
	LabelSelectedStyles25     PromoLabel = "25% Off Selected Styles"
	LabelChinos25             PromoLabel = "25% Off Chinos"
	LabelCoats25              PromoLabel = "25% Off Coats/Outerwear"
	LabelTailoring25          PromoLabel = "25% Off Tailoring"
	LabelTailoring40          PromoLabel = "40% Off Tailoring"
	LabelKnitsOffer           PromoLabel = "Knits Offer"
	LabelCasualBottomMultibuy PromoLabel = "Casual Bottom Multibuy"
	LabelFiftyFifty           PromoLabel = "50% Off 50 Styles"
	LabelSublimeSuits         PromoLabel = "$399 & $599 Suits"
	LabelGiftCard             PromoLabel = "Gift Card"
	LabelMDPurchase           PromoLabel = "MD Purchase"
	LabelPromoCode            PromoLabel = "Promo Code"
	LabelTeeMultibuy          PromoLabel = "Tee Multibuy"
	LabelShirtsMultibuy       PromoLabel = "Shirts Multibuy"
	LabelChinoMultibuy        PromoLabel = "Chino Multibuy"
	LabelLinenShirtsMultibuy  PromoLabel = "Linen Shirts Multibuy"
	LabelPoloMultibuy         PromoLabel = "Polo Multibuy"
	LabelFPPurchase           PromoLabel = "FP Purchase"
	LabelSuitMultibuy         PromoLabel = "Suit Multibuy"

	// LabelMultibuy is the bucket every "*Multibuy" label collapses into
	// for the distribution view.
	LabelMultibuy PromoLabel = "Multibuy"
)

// TierGroup is the customer loyalty tier derived from customer tags.
type TierGroup string

const (
	TierSilver   TierGroup = "Silver"
	TierGold     TierGroup = "Gold"
	TierPlatinum TierGroup = "Platinum"
)

// TotalCategory is the synthetic category of the grand total summary row.
const TotalCategory = "Total"

// CategorySummary is one row of the aggregated promo report.
type CategorySummary struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Quantity int64           `json:"quantity"`
	// Share is the category total divided by the grand total, as a fraction.
	Share decimal.Decimal `json:"share"`
}

// SharePercent returns the share as a percentage rounded to the given places.
func (c CategorySummary) SharePercent(places int32) decimal.Decimal {
	return c.Share.Mul(decimal.NewFromInt(100)).Round(places)
}

// PromoSummary is the aggregated view of a classified table.
type PromoSummary struct {
	// Categories are sorted by total, descending.
	Categories []CategorySummary `json:"categories"`
	// Total is the synthetic grand total row.
	Total CategorySummary `json:"total"`
}

// Rows returns the categories followed by the Total row.
func (s PromoSummary) Rows() []CategorySummary {
	rows := make([]CategorySummary, 0, len(s.Categories)+1)
	rows = append(rows, s.Categories...)
	return append(rows, s.Total)
}
