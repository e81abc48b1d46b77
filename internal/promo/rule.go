package promo

import (
	"promocli/pkg/contracts/domain"
)

// Rule is a named predicate that assigns one promo label to the rows it matches.
// Every rule implements exactly one of RowRule or DatasetRule.
type Rule interface {
	// Name is the key the rule is enabled by. Built-in rules are named after their label.
	Name() string
	Label() domain.PromoLabel
	// Requires lists the fields the rule reads.
	Requires() []domain.Field
}

// RowRule decides each row on its own fields.
type RowRule interface {
	Rule
	Matches(r *domain.LineRecord) bool
}

// DatasetRule needs the whole working set, including labels written by
// earlier rules, to decide which rows it labels.
type DatasetRule interface {
	Rule
	// MatchingRows returns the indexes of the rows to label, in ascending order.
	MatchingRows(rows []domain.LineRecord) []int
}

// Aliased is implemented by rules that accept alternative names.
type Aliased interface {
	Aliases() []string
}

// ExpressionBacked is implemented by rules loaded from a rules file.
type ExpressionBacked interface {
	Expression() string
}

type ruleMeta struct {
	name     string
	aliases  []string
	label    domain.PromoLabel
	requires []domain.Field
}

func (m ruleMeta) Name() string             { return m.name }
func (m ruleMeta) Label() domain.PromoLabel { return m.label }
func (m ruleMeta) Aliases() []string        { return m.aliases }

func (m ruleMeta) Requires() []domain.Field {
	out := make([]domain.Field, len(m.requires))
	copy(out, m.requires)
	return out
}

// rowRule is a declarative row-local rule: metadata plus a predicate.
type rowRule struct {
	ruleMeta
	match func(r *domain.LineRecord) bool
}

func (r rowRule) Matches(rec *domain.LineRecord) bool {
	return r.match(rec)
}

// datasetRule is a rule whose selection depends on other rows.
type datasetRule struct {
	ruleMeta
	selectRows func(rows []domain.LineRecord) []int
}

func (r datasetRule) MatchingRows(rows []domain.LineRecord) []int {
	return r.selectRows(rows)
}

// candidates evaluates rule against rows and returns the indexes it would label.
// It performs no writes; the engine folds candidates into the rows in rank order.
func candidates(rule Rule, rows []domain.LineRecord) []int {
	switch rr := rule.(type) {
	case DatasetRule:
		return rr.MatchingRows(rows)
	case RowRule:
		var idx []int
		for i := range rows {
			if rr.Matches(&rows[i]) {
				idx = append(idx, i)
			}
		}
		return idx
	default:
		return nil
	}
}

// NewRowRule builds a row-local rule from a predicate.
func NewRowRule(name string, label domain.PromoLabel, requires []domain.Field, match func(r *domain.LineRecord) bool) RowRule {
	return rowRule{
		ruleMeta: ruleMeta{name: name, label: label, requires: requires},
		match:    match,
	}
}
