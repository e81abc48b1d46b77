package dataprocessing

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"promocli/pkg/contracts/domain"
)

// Aggregator pivots classified line records by promo type.
type Aggregator struct {
	logger      *slog.Logger
	sharePlaces int32
}

// AggregatorConfig holds configuration options for the Aggregator.
type AggregatorConfig struct {
	SharePlaces int32 // Decimal places kept on share fractions; 4 when zero
}

// NewAggregator creates a new aggregator with the given configuration.
func NewAggregator(logger *slog.Logger, config AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.SharePlaces <= 0 {
		config.SharePlaces = 4
	}
	return &Aggregator{
		logger:      logger.With(slog.String("component", "aggregator")),
		sharePlaces: config.SharePlaces,
	}
}

// Summarize groups records by promo type, summing totals and quantities.
// Unlabelled rows are left out. Categories are sorted by total, largest first,
// with ties broken by name, and a Total row closes the summary.
func (a *Aggregator) Summarize(ctx context.Context, records []domain.LineRecord) domain.PromoSummary {
	categories := a.group(records, func(l domain.PromoLabel) string { return string(l) })

	summary := domain.PromoSummary{
		Categories: categories,
		Total:      a.totalRow(categories),
	}

	a.logger.InfoContext(ctx, "summarized promo types",
		slog.Int("record_count", len(records)),
		slog.Int("category_count", len(categories)),
		slog.String("grand_total", summary.Total.Total.StringFixed(2)))

	return summary
}

// Distribution is the summary with every Multibuy label merged into one
// bucket. It carries no Total row.
func (a *Aggregator) Distribution(ctx context.Context, records []domain.LineRecord) []domain.CategorySummary {
	categories := a.group(records, CollapseMultibuy)

	a.logger.DebugContext(ctx, "built promo distribution",
		slog.Int("category_count", len(categories)))

	return categories
}

// CollapseMultibuy maps any label containing "Multibuy" to the Multibuy bucket.
func CollapseMultibuy(label domain.PromoLabel) string {
	if strings.Contains(string(label), "Multibuy") {
		return string(domain.LabelMultibuy)
	}
	return string(label)
}

func (a *Aggregator) group(records []domain.LineRecord, key func(domain.PromoLabel) string) []domain.CategorySummary {
	index := make(map[string]int)
	var categories []domain.CategorySummary

	for i := range records {
		r := &records[i]
		if r.PromoType == "" {
			continue
		}
		k := key(r.PromoType)
		pos, ok := index[k]
		if !ok {
			pos = len(categories)
			index[k] = pos
			categories = append(categories, domain.CategorySummary{Category: k})
		}
		if r.Total.Valid {
			categories[pos].Total = categories[pos].Total.Add(r.Total.Decimal)
		}
		categories[pos].Quantity += r.Quantity
	}

	sort.SliceStable(categories, func(i, j int) bool {
		if c := categories[i].Total.Cmp(categories[j].Total); c != 0 {
			return c > 0
		}
		return categories[i].Category < categories[j].Category
	})

	grand := decimal.Zero
	for _, c := range categories {
		grand = grand.Add(c.Total)
	}
	for i := range categories {
		categories[i].Share = a.share(categories[i].Total, grand)
	}

	if categories == nil {
		categories = []domain.CategorySummary{}
	}
	return categories
}

func (a *Aggregator) totalRow(categories []domain.CategorySummary) domain.CategorySummary {
	total := domain.CategorySummary{Category: domain.TotalCategory}
	for _, c := range categories {
		total.Total = total.Total.Add(c.Total)
		total.Quantity += c.Quantity
	}
	total.Share = a.share(total.Total, total.Total)
	return total
}

// share is part/whole rounded to the configured places; zero when whole is zero.
func (a *Aggregator) share(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.DivRound(whole, a.sharePlaces)
}
