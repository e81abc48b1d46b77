package promo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

func TestCompileExpressionRules(t *testing.T) {
	rules, err := CompileExpressionRules([]ExpressionRuleSpec{
		{
			Name:       "Jeans Multibuy",
			Expression: `hasToken(line.product_tags, "discount:2_each_$150") && line.total in [150.0, 300.0]`,
		},
		{
			Name:       "Deep Markdown",
			Label:      "Clearance",
			Expression: `has(line.ratio) && line.ratio >= 0.5`,
		},
		{
			Name:       "Linen Anything",
			Expression: `containsFold(line.title, "linen") && line.quantity > 1`,
		},
	})
	require.NoError(t, err)
	require.Len(t, rules, 3)

	jeans := rules[0].(RowRule)
	assert.Equal(t, domain.PromoLabel("Jeans Multibuy"), jeans.Label())
	assert.ElementsMatch(t, []domain.Field{domain.FieldProductTags, domain.FieldTotal}, jeans.Requires())

	rec := fullPrice(func(r *domain.LineRecord) {
		r.ProductTags = "denim, discount:2_each_$150"
		r.Total = dec("300")
	})
	assert.True(t, jeans.Matches(&rec))

	rec.Total = null
	assert.False(t, jeans.Matches(&rec), "missing numerics never match")

	markdown := rules[1].(RowRule)
	assert.Equal(t, domain.PromoLabel("Clearance"), markdown.Label())
	assert.ElementsMatch(t, []domain.Field{domain.FieldPrice, domain.FieldDiscountPerItem}, markdown.Requires())

	rec = fullPrice(func(r *domain.LineRecord) { r.DiscountPerItem = dec("-60") })
	assert.True(t, markdown.Matches(&rec))
	rec.Price = dec("0")
	assert.False(t, markdown.Matches(&rec))

	linen := rules[2].(RowRule)
	rec = fullPrice(func(r *domain.LineRecord) { r.Title = "LINEN Shirt"; r.Quantity = 2 })
	assert.True(t, linen.Matches(&rec))
}

func TestCompileExpressionRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec ExpressionRuleSpec
	}{
		{"missing name", ExpressionRuleSpec{Expression: "true"}},
		{"missing expression", ExpressionRuleSpec{Name: "x"}},
		{"syntax error", ExpressionRuleSpec{Name: "x", Expression: "line.total >"}},
		{"non bool result", ExpressionRuleSpec{Name: "x", Expression: `"yes"`}},
		{"unknown field", ExpressionRuleSpec{Name: "x", Expression: `line.colour == "red"`}},
		{"unknown declared field", ExpressionRuleSpec{Name: "x", Expression: "true", Requires: []string{"sku"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileExpressionRules([]ExpressionRuleSpec{tt.spec})
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
		})
	}
}

func TestLoadExpressionRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := `rules:
  - name: Jeans Multibuy
    expression: 'hasToken(line.product_tags, "discount:2_each_$150") && line.total in [150.0, 300.0]'
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadExpressionRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Implements(t, (*ExpressionBacked)(nil), rules[0])
	assert.Equal(t, `hasToken(line.product_tags, "discount:2_each_$150") && line.total in [150.0, 300.0]`,
		rules[0].(ExpressionBacked).Expression())

	catalog, err := WithExpressionRules(DefaultCatalog(), rules)
	require.NoError(t, err)
	assert.Equal(t, 21, catalog.Rank("Jeans Multibuy"))

	table := domain.NewTable([]domain.LineRecord{
		fullPrice(func(r *domain.LineRecord) {
			r.ProductTags = "discount:2_each_$150"
			r.DiscountPerItem = dec("-25")
			r.Total = dec("150")
		}),
	})
	out, err := NewEngine(catalog, nil).Classify(context.Background(), table, []string{"25% Off Selected Styles", "jeans multibuy"})
	require.NoError(t, err)
	assert.Equal(t, domain.PromoLabel("Jeans Multibuy"), out.Records[0].PromoType)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadExpressionRules(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	})

	t.Run("name collides with a built-in", func(t *testing.T) {
		clash, err := CompileExpressionRules([]ExpressionRuleSpec{{Name: "gift card", Expression: "true"}})
		require.NoError(t, err)
		_, err = WithExpressionRules(DefaultCatalog(), clash)
		assert.Error(t, err)
	})
}
