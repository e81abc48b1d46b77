package promo

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

// Catalog is an ordered registry of rules. A rule's rank is its registration position.
type Catalog struct {
	mu      sync.RWMutex
	rules   map[string]Rule
	aliases map[string]string // lower-cased name or alias -> name
	order   []string
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		rules:   make(map[string]Rule),
		aliases: make(map[string]string),
		order:   make([]string, 0),
	}
}

// Register appends a rule at the lowest rank
func (c *Catalog) Register(rule Rule) error {
	if rule == nil {
		return fmt.Errorf("cannot register nil rule")
	}

	name := rule.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if rule.Label() == "" {
		return fmt.Errorf("rule %s has no label", name)
	}
	switch rule.(type) {
	case RowRule, DatasetRule:
	default:
		return fmt.Errorf("rule %s is neither a row nor a dataset rule", name)
	}

	keys := []string{strings.ToLower(name)}
	if a, ok := rule.(Aliased); ok {
		for _, alias := range a.Aliases() {
			if k := strings.ToLower(alias); k != keys[0] {
				keys = append(keys, k)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if owner, exists := c.aliases[k]; exists {
			return fmt.Errorf("rule name %q already registered by %s", k, owner)
		}
	}

	c.rules[name] = rule
	c.order = append(c.order, name)
	for _, k := range keys {
		c.aliases[k] = name
	}
	return nil
}

// Get retrieves a rule by its exact name
func (c *Catalog) Get(name string) (Rule, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rule, exists := c.rules[name]
	if !exists {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("rule %s", name))
	}
	return rule, nil
}

// Has checks if a rule is registered under the exact name
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.rules[name]
	return exists
}

// Resolve finds a rule by name or alias, ignoring case and surrounding space
func (c *Catalog) Resolve(name string) (Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	canonical, ok := c.aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return c.rules[canonical], true
}

// List returns all rules in rank order
func (c *Catalog) List() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rules := make([]Rule, 0, len(c.order))
	for _, name := range c.order {
		rules = append(rules, c.rules[name])
	}
	return rules
}

// Names returns all rule names in rank order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// SortedNames returns all rule names alphabetically, as shown in selection lists
func (c *Catalog) SortedNames() []string {
	names := c.Names()
	sort.Strings(names)
	return names
}

// Labels returns the distinct labels the catalog can write, in rank order
func (c *Catalog) Labels() []domain.PromoLabel {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[domain.PromoLabel]bool, len(c.order))
	labels := make([]domain.PromoLabel, 0, len(c.order))
	for _, name := range c.order {
		l := c.rules[name].Label()
		if !seen[l] {
			seen[l] = true
			labels = append(labels, l)
		}
	}
	return labels
}

// Rank returns the 1-based rank of the named rule, or 0 when unknown
func (c *Catalog) Rank(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i, n := range c.order {
		if n == name {
			return i + 1
		}
	}
	return 0
}

// Count returns the number of registered rules
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.rules)
}

// Select resolves the enabled names and returns those rules in rank order.
// Duplicates collapse; any unknown name fails the whole selection.
func (c *Catalog) Select(enabled []string) ([]Rule, error) {
	want := make(map[string]bool, len(enabled))
	var unknown []string
	for _, name := range enabled {
		rule, ok := c.Resolve(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		want[rule.Name()] = true
	}
	if len(unknown) > 0 {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("unknown promotions: %s", strings.Join(unknown, ", "))).
			WithContext("unknown", unknown)
	}

	selected := make([]Rule, 0, len(want))
	for _, rule := range c.List() {
		if want[rule.Name()] {
			selected = append(selected, rule)
		}
	}
	return selected, nil
}

// Clone creates a copy of the catalog that can be extended independently
func (c *Catalog) Clone() *Catalog {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := NewCatalog()
	for _, name := range c.order {
		clone.rules[name] = c.rules[name]
		clone.order = append(clone.order, name)
	}
	for k, v := range c.aliases {
		clone.aliases[k] = v
	}
	return clone
}
