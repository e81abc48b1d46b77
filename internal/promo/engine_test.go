package promo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

var defaultSelection = []string{
	"Chino Multibuy", "FP Purchase", "Gift Card", "Linen Shirts Multibuy", "MD Purchase",
	"Polo Multibuy", "Promo Code", "Shirts Multibuy", "Suit Multibuy", "Tee Multibuy",
}

func allRules() []string {
	return DefaultCatalog().Names()
}

func TestEngine_Classify_Scenarios(t *testing.T) {
	engine := NewEngine(nil, nil)
	ctx := context.Background()

	t.Run("trouser backfilled and overridden by suit multibuy", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.Title = "Slim Trouser"
				r.ProductType = ""
				r.Total = dec("200")
			}),
			fullPrice(func(r *domain.LineRecord) {
				r.Title = "Slim Trouser"
				r.ProductType = ""
				r.Total = dec("190")
			}),
		})

		out, err := engine.Classify(ctx, table, defaultSelection)
		require.NoError(t, err)
		require.Len(t, out.Records, 2)

		assert.Equal(t, domain.LabelSuitMultibuy, out.Records[0].PromoType)
		assert.Equal(t, "Trousers", out.Records[0].ProductType)
		assert.Equal(t, domain.LabelFPPurchase, out.Records[1].PromoType)
		assert.Equal(t, "Trousers", out.Records[1].ProductType)
	})

	t.Run("chino multibuy from tag and total", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.Title = "Stretch Chino"
				r.ProductType = "Chinos"
				r.ProductTags = "discount:2_each_$110"
				r.Price = dec("135")
				r.DiscountPerItem = dec("-25")
				r.Total = dec("220")
				r.Quantity = 2
			}),
		})

		out, err := engine.Classify(ctx, table, allRules())
		require.NoError(t, err)
		assert.Equal(t, []domain.PromoLabel{domain.LabelChinoMultibuy}, labels(out))
	})

	t.Run("promo code order is exempt from fp purchase", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) { r.ID = "A1" }),
			fullPrice(func(r *domain.LineRecord) { r.ID = "A1"; r.Title = "Crew Neck Tee" }),
			fullPrice(func(r *domain.LineRecord) {
				r.ID = "A1"
				r.Type = domain.LineTypeDiscount
				r.Name = "UNIDAYS"
				r.Discount = dec("-20")
			}),
			fullPrice(func(r *domain.LineRecord) { r.ID = "B2" }),
			fullPrice(func(r *domain.LineRecord) { r.ID = "B2"; r.Type = domain.LineTypeShipping; r.Title = "Standard" }),
		})

		out, err := engine.Classify(ctx, table, defaultSelection)
		require.NoError(t, err)

		assert.Equal(t, []domain.PromoLabel{
			domain.LabelPromoCode,
			domain.LabelPromoCode,
			domain.LabelFPPurchase,
		}, labels(out))
		for _, r := range out.Records {
			assert.Equal(t, domain.LineTypeLineItem, r.Type)
		}
	})

	t.Run("gift card keeps its label when nothing later matches", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.Title = "Gift Card"
				r.ProductType = ""
				r.CompareAtPrice = null
				r.Total = dec("200")
			}),
		})

		out, err := engine.Classify(ctx, table, allRules())
		require.NoError(t, err)
		assert.Equal(t, domain.LabelGiftCard, out.Records[0].PromoType)
	})

	t.Run("suit multibuy override replaces md purchase", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.Title = "Wool Suit Jacket"
				r.CompareAtPrice = dec("450")
				r.Total = dec("350")
			}),
		})

		out, err := engine.Classify(ctx, table, []string{"MD Purchase"})
		require.NoError(t, err)
		assert.Equal(t, domain.LabelSuitMultibuy, out.Records[0].PromoType)
	})
}

func TestEngine_Classify_OrderSensitivity(t *testing.T) {
	engine := NewEngine(nil, nil)

	t.Run("highest rank wins in stage one", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.DiscountPerItem = dec("-25")
				r.CompareAtPrice = dec("130")
			}),
			fullPrice(func(r *domain.LineRecord) {
				r.ProductType = "Chinos"
				r.DiscountPerItem = dec("-25")
			}),
		})

		out, err := engine.Classify(context.Background(), table, allRules())
		require.NoError(t, err)
		assert.Equal(t, []domain.PromoLabel{domain.LabelMDPurchase, domain.LabelChinos25}, labels(out))
	})

	t.Run("selection order does not matter", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.DiscountPerItem = dec("-25")
				r.CompareAtPrice = dec("130")
			}),
		})

		a, err := engine.Classify(context.Background(), table, []string{"TAF25", "MD Purchase"})
		require.NoError(t, err)
		b, err := engine.Classify(context.Background(), table, []string{"MD Purchase", "TAF25"})
		require.NoError(t, err)
		assert.Equal(t, labels(a), labels(b))
	})

	t.Run("selected styles row ends as suit multibuy", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{
			fullPrice(func(r *domain.LineRecord) {
				r.Title = "Linen Jacket"
				r.DiscountPerItem = dec("-25")
				r.Total = dec("175")
			}),
		})

		out, err := engine.Classify(context.Background(), table, []string{"25% Off Selected Styles"})
		require.NoError(t, err)
		assert.Equal(t, domain.LabelSuitMultibuy, out.Records[0].PromoType)
	})
}

func TestEngine_Classify_Tail(t *testing.T) {
	engine := NewEngine(nil, nil)

	table := domain.NewTable([]domain.LineRecord{
		fullPrice(func(r *domain.LineRecord) { r.CustomerTags = "cx-tier-tier-3" }),
		fullPrice(func(r *domain.LineRecord) { r.Type = domain.LineTypeShipping }),
		fullPrice(func(r *domain.LineRecord) { r.Type = domain.LineTypeDiscount }),
		fullPrice(func(r *domain.LineRecord) {
			r.Title = "Tweed Waistcoat"
			r.ProductType = ""
			r.CustomerTags = "cx-tier-tier-2"
		}),
		fullPrice(func(r *domain.LineRecord) {
			r.Title = "Tweed Waistcoat"
			r.ProductType = "Tailoring"
		}),
		fullPrice(func(r *domain.LineRecord) { r.Type = "Tip" }),
	})

	out, err := engine.Classify(context.Background(), table, nil)
	require.NoError(t, err)
	require.Len(t, out.Records, 4)

	assert.Equal(t, domain.TierPlatinum, out.Records[0].TierGroup)
	assert.Equal(t, domain.TierGold, out.Records[1].TierGroup)
	assert.Equal(t, domain.TierSilver, out.Records[2].TierGroup)
	assert.Equal(t, domain.TierSilver, out.Records[3].TierGroup)

	assert.Equal(t, "Waistcoat", out.Records[1].ProductType)
	assert.Equal(t, "Tailoring", out.Records[2].ProductType)

	// FP Purchase always runs, even with nothing enabled.
	assert.Equal(t, domain.LabelFPPurchase, out.Records[0].PromoType)
	assert.Equal(t, domain.LineType("Tip"), out.Records[3].Type)
}

func TestEngine_Classify_BackfillUpdatesCells(t *testing.T) {
	table := domain.NewTable([]domain.LineRecord{
		fullPrice(func(r *domain.LineRecord) {
			r.Title = "Pleated Trouser"
			r.ProductType = ""
		}),
	})
	table.Records[0].Cells = make([]string, len(table.Headers))

	out, err := NewEngine(nil, nil).Classify(context.Background(), table, nil)
	require.NoError(t, err)

	col := table.Fields[domain.FieldProductType]
	assert.Equal(t, "Trousers", out.Records[0].Cells[col])
	assert.Equal(t, "", table.Records[0].Cells[col], "input cells must not change")
}

func TestEngine_Classify_DoesNotMutateInput(t *testing.T) {
	table := domain.NewTable([]domain.LineRecord{
		fullPrice(),
		fullPrice(func(r *domain.LineRecord) { r.Type = domain.LineTypeShipping }),
	})
	table.Records[0].PromoType = "stale"

	out, err := NewEngine(nil, nil).Classify(context.Background(), table, allRules())
	require.NoError(t, err)

	assert.Len(t, table.Records, 2)
	assert.Equal(t, domain.PromoLabel("stale"), table.Records[0].PromoType)
	assert.Equal(t, domain.TierGroup(""), table.Records[0].TierGroup)
	assert.Equal(t, domain.LabelFPPurchase, out.Records[0].PromoType)
}

func TestEngine_Classify_NullNumerics(t *testing.T) {
	table := domain.NewTable([]domain.LineRecord{
		fullPrice(func(r *domain.LineRecord) {
			r.Price = null
			r.DiscountPerItem = null
			r.Total = null
			r.ProductTags = "5050Jul24"
		}),
	})

	out, err := NewEngine(nil, nil).Classify(context.Background(), table, allRules())
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, domain.LabelFiftyFifty, out.Records[0].PromoType)
}

func TestEngine_Classify_Errors(t *testing.T) {
	engine := NewEngine(nil, nil)

	t.Run("missing field for an enabled rule", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{fullPrice()})
		delete(table.Fields, domain.FieldProductTags)

		out, err := engine.Classify(context.Background(), table, []string{"50% Off 50 Styles"})
		require.Error(t, err)
		assert.Nil(t, out)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrTypeSchema, appErr.Type)
		assert.Equal(t, []string{"product_tags"}, appErr.Context["fields"])
		assert.Empty(t, table.Records[0].PromoType)
	})

	t.Run("product tags not needed when no tag rule is enabled", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{fullPrice()})
		delete(table.Fields, domain.FieldProductTags)

		_, err := engine.Classify(context.Background(), table, []string{"Gift Card"})
		assert.NoError(t, err)
	})

	t.Run("missing field for the tail", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{fullPrice()})
		delete(table.Fields, domain.FieldCustomerTags)

		_, err := engine.Classify(context.Background(), table, nil)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))
	})

	t.Run("unknown promotion", func(t *testing.T) {
		table := domain.NewTable([]domain.LineRecord{fullPrice()})

		_, err := engine.Classify(context.Background(), table, []string{"Mystery"})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})

	t.Run("nil table", func(t *testing.T) {
		_, err := engine.Classify(context.Background(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Classify(ctx, domain.NewTable([]domain.LineRecord{fullPrice()}), allRules())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRequiredFields(t *testing.T) {
	rules, err := DefaultCatalog().Select([]string{"Gift Card"})
	require.NoError(t, err)
	fields := requiredFields(rules)

	assert.ElementsMatch(t, []domain.Field{
		domain.FieldTitle,
		domain.FieldType,
		domain.FieldCustomerTags,
		domain.FieldProductType,
		domain.FieldCompareAtPrice,
		domain.FieldDiscount,
		domain.FieldDiscountPerItem,
		domain.FieldTotal,
	}, fields)
}
