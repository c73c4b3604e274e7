package aggregation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/fastygo/notifyagg/domain"
)

// RuleCatalog holds aggregation rules in registration order. Matching is
// first-match: when several rules share a category, the one registered first
// wins, so register type-specific rules before generic category rules.
type RuleCatalog struct {
	mu       sync.RWMutex
	rules    []domain.AggregationRule
	ids      map[string]struct{}
	validate *validator.Validate
}

// NewRuleCatalog registers rules in the given order.
func NewRuleCatalog(rules ...domain.AggregationRule) (*RuleCatalog, error) {
	c := &RuleCatalog{
		ids:      make(map[string]struct{}),
		validate: validator.New(),
	}
	for _, rule := range rules {
		if err := c.Register(rule); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register validates and appends a rule.
func (c *RuleCatalog) Register(rule domain.AggregationRule) error {
	if err := c.validate.Struct(rule); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidRule.Message, fmt.Errorf("rule %q: %w", rule.ID, err))
	}
	for _, path := range rule.GroupBy {
		if strings.HasPrefix(path, ".") || strings.HasSuffix(path, ".") || strings.Contains(path, "..") {
			return domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidRule.Message, fmt.Errorf("rule %q: malformed group_by path %q", rule.ID, path))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.ids[rule.ID]; exists {
		return domain.WrapError(domain.ErrCodeConflict, domain.ErrDuplicateRule.Message, fmt.Errorf("rule %q", rule.ID))
	}
	rule.GroupBy = append([]string(nil), rule.GroupBy...)
	c.rules = append(c.rules, rule)
	c.ids[rule.ID] = struct{}{}
	return nil
}

// FindMatchingRule returns a copy of the first rule matching the event.
func (c *RuleCatalog) FindMatchingRule(event *domain.NotificationEvent) (*domain.AggregationRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.rules {
		if c.rules[i].Matches(event) {
			rule := c.rules[i]
			return &rule, true
		}
	}
	return nil, false
}

// Rules returns the registered rules in order.
func (c *RuleCatalog) Rules() []domain.AggregationRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.AggregationRule(nil), c.rules...)
}

func (c *RuleCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}
