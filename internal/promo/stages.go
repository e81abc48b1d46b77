package promo

import (
	"promocli/pkg/contracts/domain"
)

// stage is one step of the mandatory tail. apply mutates the working table
// and returns the number of rows it touched.
type stage struct {
	name  string
	apply func(t *domain.Table) int
}

var (
	fpPurchase   = FPPurchaseRule()
	suitMultibuy = SuitMultibuyRule()
)

// tailStages runs after the enabled rules, in this order, whatever the selection.
func tailStages() []stage {
	return []stage{
		{name: "drop_shipping_lines", apply: func(t *domain.Table) int {
			return dropLineType(t, domain.LineTypeShipping)
		}},
		{name: "fp_purchase", apply: func(t *domain.Table) int {
			return fold(t.Records, fpPurchase.Label(), candidates(fpPurchase, t.Records))
		}},
		{name: "drop_discount_lines", apply: func(t *domain.Table) int {
			return dropLineType(t, domain.LineTypeDiscount)
		}},
		{name: "tier_group", apply: assignTiers},
		{name: "backfill_product_type", apply: backfillProductType},
		{name: "suit_multibuy_override", apply: func(t *domain.Table) int {
			return fold(t.Records, suitMultibuy.Label(), candidates(suitMultibuy, t.Records))
		}},
	}
}

// tailRequires lists the fields the mandatory tail reads.
func tailRequires() []domain.Field {
	fields := []domain.Field{domain.FieldType, domain.FieldCustomerTags, domain.FieldProductType}
	fields = append(fields, fpPurchase.Requires()...)
	return append(fields, suitMultibuy.Requires()...)
}

// fold writes label to every candidate row, overwriting earlier labels.
func fold(rows []domain.LineRecord, label domain.PromoLabel, idx []int) int {
	for _, i := range idx {
		rows[i].PromoType = label
	}
	return len(idx)
}

// dropLineType removes rows of the given type in place and returns how many went.
func dropLineType(t *domain.Table, lt domain.LineType) int {
	kept := t.Records[:0]
	for _, r := range t.Records {
		if r.Type != lt {
			kept = append(kept, r)
		}
	}
	dropped := len(t.Records) - len(kept)
	// Clear the tail so dropped rows don't linger in the backing array.
	for i := len(kept); i < len(t.Records); i++ {
		t.Records[i] = domain.LineRecord{}
	}
	t.Records = kept
	return dropped
}

var tierTokens = []struct {
	token string
	tier  domain.TierGroup
}{
	{"cx-tier-tier-1", domain.TierSilver},
	{"cx-tier-tier-2", domain.TierGold},
	{"cx-tier-tier-3", domain.TierPlatinum},
}

// TierFor derives the loyalty tier from customer tags. The first matching token wins.
func TierFor(customerTags string) domain.TierGroup {
	for _, tt := range tierTokens {
		if hasToken(customerTags, tt.token) {
			return tt.tier
		}
	}
	return domain.TierSilver
}

func assignTiers(t *domain.Table) int {
	upgraded := 0
	for i := range t.Records {
		t.Records[i].TierGroup = TierFor(t.Records[i].CustomerTags)
		if t.Records[i].TierGroup != domain.TierSilver {
			upgraded++
		}
	}
	return upgraded
}

// backfillProductType fills empty product types from the title and keeps the
// source cell in step so the persisted sheet shows the same value.
func backfillProductType(t *domain.Table) int {
	col, hasCol := t.Fields[domain.FieldProductType]
	filled := 0
	for i := range t.Records {
		r := &t.Records[i]
		if r.ProductType != "" {
			continue
		}
		switch {
		case containsFold(r.Title, "Trouser"):
			r.ProductType = "Trousers"
		case containsFold(r.Title, "Waistcoat"):
			r.ProductType = "Waistcoat"
		default:
			continue
		}
		if hasCol && col < len(r.Cells) {
			r.Cells[col] = r.ProductType
		}
		filled++
	}
	return filled
}
