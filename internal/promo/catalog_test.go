package promo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

func alwaysRule(name string) RowRule {
	return NewRowRule(name, domain.PromoLabel(name), nil, func(*domain.LineRecord) bool { return true })
}

func TestCatalog_Register(t *testing.T) {
	c := NewCatalog()

	require.NoError(t, c.Register(alwaysRule("first")))
	require.NoError(t, c.Register(alwaysRule("second")))

	assert.Equal(t, 2, c.Count())
	assert.Equal(t, []string{"first", "second"}, c.Names())
	assert.Equal(t, 1, c.Rank("first"))
	assert.Equal(t, 2, c.Rank("second"))
	assert.Equal(t, 0, c.Rank("third"))

	t.Run("nil rule", func(t *testing.T) {
		assert.Error(t, c.Register(nil))
	})

	t.Run("empty name", func(t *testing.T) {
		assert.Error(t, c.Register(alwaysRule(" ")))
	})

	t.Run("duplicate name ignores case", func(t *testing.T) {
		err := c.Register(alwaysRule("FIRST"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")
		assert.Equal(t, 2, c.Count())
	})
}

func TestCatalog_Get(t *testing.T) {
	c := DefaultCatalog()

	rule, err := c.Get("Gift Card")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelGiftCard, rule.Label())

	_, err = c.Get("gift card")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	assert.True(t, c.Has("Promo Code"))
	assert.False(t, c.Has("Chinos 25%"))
}

func TestCatalog_Resolve(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		input string
		want  domain.PromoLabel
	}{
		{"25% Off Chinos", domain.LabelChinos25},
		{"chinos 25%", domain.LabelChinos25},
		{"  Knits 25%  ", domain.LabelKnitsOffer},
		{"sublime suits", domain.LabelSublimeSuits},
		{"unidays", domain.LabelPromoCode},
		{"$399 & $599 Suits", domain.LabelSublimeSuits},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			rule, ok := c.Resolve(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.want, rule.Label())
		})
	}

	_, ok := c.Resolve("Black Friday")
	assert.False(t, ok)
}

func TestCatalog_Select(t *testing.T) {
	c := DefaultCatalog()

	t.Run("returns rank order and collapses duplicates", func(t *testing.T) {
		rules, err := c.Select([]string{"Suit Multibuy", "TAF25", "taf25", "Gift Card"})
		require.NoError(t, err)

		names := make([]string, len(rules))
		for i, r := range rules {
			names[i] = r.Name()
		}
		assert.Equal(t, []string{"TAF25", "Gift Card", "Suit Multibuy"}, names)
	})

	t.Run("empty selection", func(t *testing.T) {
		rules, err := c.Select(nil)
		require.NoError(t, err)
		assert.Empty(t, rules)
	})

	t.Run("unknown names fail the whole selection", func(t *testing.T) {
		rules, err := c.Select([]string{"TAF25", "Nope", "Also Nope"})
		require.Error(t, err)
		assert.Nil(t, rules)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.ErrTypeValidation, appErr.Type)
		assert.Equal(t, []string{"Nope", "Also Nope"}, appErr.Context["unknown"])
	})
}

func TestCatalog_SortedNames(t *testing.T) {
	names := DefaultCatalog().SortedNames()

	require.Len(t, names, 20)
	assert.Equal(t, "$399 & $599 Suits", names[0])
	assert.IsNonDecreasing(t, names)
}

func TestCatalog_Clone(t *testing.T) {
	base := DefaultCatalog()
	clone := base.Clone()

	require.NoError(t, clone.Register(alwaysRule("Extra")))

	assert.Equal(t, 20, base.Count())
	assert.Equal(t, 21, clone.Count())
	assert.Equal(t, 21, clone.Rank("Extra"))
	_, ok := base.Resolve("Extra")
	assert.False(t, ok)
	_, ok = clone.Resolve("tee multibuy")
	assert.True(t, ok)
}
