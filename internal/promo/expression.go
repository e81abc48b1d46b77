package promo

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"gopkg.in/yaml.v2"

	apperrors "promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

// ExpressionRuleSpec is one user-defined rule as written in a rules file.
//
//	rules:
//	  - name: Jeans Multibuy
//	    label: Jeans Multibuy
//	    expression: 'hasToken(line.product_tags, "discount:2_each_$150") && line.total in [150.0, 300.0]'
type ExpressionRuleSpec struct {
	Name       string   `yaml:"name"`
	Label      string   `yaml:"label"`
	Expression string   `yaml:"expression"`
	Requires   []string `yaml:"requires"`
}

// ExpressionRuleFile is the top-level shape of a rules file.
type ExpressionRuleFile struct {
	Rules []ExpressionRuleSpec `yaml:"rules"`
}

var lineRef = regexp.MustCompile(`\bline\.([a-z_]+)`)

// expressionRule is a row rule backed by a compiled CEL program.
type expressionRule struct {
	ruleMeta
	source  string
	program cel.Program
}

// Matches evaluates the expression. Evaluation errors (a missing numeric
// value, a non-bool result) count as no match.
func (r *expressionRule) Matches(rec *domain.LineRecord) bool {
	out, _, err := r.program.Eval(map[string]any{"line": lineActivation(rec)})
	if err != nil {
		return false
	}
	matched, ok := out.Value().(bool)
	return ok && matched
}

// Expression returns the CEL source of the rule.
func (r *expressionRule) Expression() string {
	return r.source
}

// newExpressionEnv declares the variables and helpers available to rule expressions.
func newExpressionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		cel.Variable("line", cel.MapType(cel.StringType, cel.DynType)),
		cel.Function("hasToken",
			cel.Overload("hasToken_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					s, ok1 := lhs.(types.String)
					tok, ok2 := rhs.(types.String)
					if !ok1 || !ok2 {
						return types.False
					}
					return types.Bool(hasToken(string(s), string(tok)))
				}),
			),
		),
		cel.Function("containsFold",
			cel.Overload("containsFold_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					s, ok1 := lhs.(types.String)
					sub, ok2 := rhs.(types.String)
					if !ok1 || !ok2 {
						return types.False
					}
					return types.Bool(containsFold(string(s), string(sub)))
				}),
			),
		),
	)
}

// CompileExpressionRules compiles rule specs into row rules.
// Every spec is checked; the returned error lists all failures.
func CompileExpressionRules(specs []ExpressionRuleSpec) ([]Rule, error) {
	env, err := newExpressionEnv()
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create expression environment", err)
	}

	rules := make([]Rule, 0, len(specs))
	var problems []string
	for i, spec := range specs {
		rule, err := compileExpressionRule(env, spec)
		if err != nil {
			problems = append(problems, fmt.Sprintf("rule %d (%s): %v", i+1, spec.Name, err))
			continue
		}
		rules = append(rules, rule)
	}
	if len(problems) > 0 {
		return nil, apperrors.NewConfigError("invalid expression rules", errors.New(strings.Join(problems, "; ")))
	}
	return rules, nil
}

func compileExpressionRule(env *cel.Env, spec ExpressionRuleSpec) (*expressionRule, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	label := strings.TrimSpace(spec.Label)
	if label == "" {
		label = name
	}
	if strings.TrimSpace(spec.Expression) == "" {
		return nil, fmt.Errorf("expression is required")
	}

	ast, issues := env.Compile(spec.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must yield bool, got %s", t)
	}
	prg, err := env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}

	requires, err := expressionRequires(spec)
	if err != nil {
		return nil, err
	}

	return &expressionRule{
		ruleMeta: ruleMeta{name: name, label: domain.PromoLabel(label), requires: requires},
		source:   spec.Expression,
		program:  prg,
	}, nil
}

// expressionRequires merges declared fields with those referenced as line.<field>.
func expressionRequires(spec ExpressionRuleSpec) ([]domain.Field, error) {
	known := make(map[string]bool)
	for _, f := range domain.AllFields() {
		known[string(f)] = true
	}

	set := make(map[domain.Field]bool)
	for _, name := range spec.Requires {
		if !known[name] {
			return nil, fmt.Errorf("unknown field %q in requires", name)
		}
		set[domain.Field(name)] = true
	}
	for _, m := range lineRef.FindAllStringSubmatch(spec.Expression, -1) {
		switch {
		case m[1] == "promo_type":
		case m[1] == "ratio":
			set[domain.FieldPrice] = true
			set[domain.FieldDiscountPerItem] = true
		case known[m[1]]:
			set[domain.Field(m[1])] = true
		default:
			return nil, fmt.Errorf("unknown field line.%s", m[1])
		}
	}

	fields := make([]domain.Field, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields, nil
}

// lineActivation exposes a record to CEL. Missing numerics are left out so
// that has(line.price) can test for them.
func lineActivation(r *domain.LineRecord) map[string]any {
	m := map[string]any{
		string(domain.FieldID):           r.ID,
		string(domain.FieldType):         string(r.Type),
		string(domain.FieldName):         r.Name,
		string(domain.FieldTitle):        r.Title,
		string(domain.FieldProductType):  r.ProductType,
		string(domain.FieldProductTags):  r.ProductTags,
		string(domain.FieldCustomerTags): r.CustomerTags,
		string(domain.FieldQuantity):     r.Quantity,
		"promo_type":                     string(r.PromoType),
	}
	numeric := map[domain.Field]struct {
		valid bool
		f     float64
	}{
		domain.FieldPrice:           {r.Price.Valid, r.Price.Decimal.InexactFloat64()},
		domain.FieldDiscountPerItem: {r.DiscountPerItem.Valid, r.DiscountPerItem.Decimal.InexactFloat64()},
		domain.FieldDiscount:        {r.Discount.Valid, r.Discount.Decimal.InexactFloat64()},
		domain.FieldCompareAtPrice:  {r.CompareAtPrice.Valid, r.CompareAtPrice.Decimal.InexactFloat64()},
		domain.FieldTotal:           {r.Total.Valid, r.Total.Decimal.InexactFloat64()},
	}
	for f, v := range numeric {
		if v.valid {
			m[string(f)] = v.f
		}
	}
	if ratio, ok := discountRatio(r); ok {
		m["ratio"] = ratio.InexactFloat64()
	}
	return m
}

// LoadExpressionRules reads and compiles a YAML rules file.
func LoadExpressionRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read rules file %s", path), err)
	}

	var file ExpressionRuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to parse rules file %s", path), err)
	}
	return CompileExpressionRules(file.Rules)
}

// WithExpressionRules returns a copy of base with rules appended after its
// existing entries, so they rank below every built-in rule.
func WithExpressionRules(base *Catalog, rules []Rule) (*Catalog, error) {
	c := base.Clone()
	for _, rule := range rules {
		if err := c.Register(rule); err != nil {
			return nil, apperrors.NewConfigError("failed to register expression rule", err)
		}
	}
	return c, nil
}
