// Package categorizer suggests expense categories for invoice items and turns
// an extracted invoice into suggested expenses.
package categorizer

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/textutil"
)

// Source tells which stage produced a category
type Source string

const (
	SourceKeyword Source = "keyword"
	SourceRule    Source = "rule"
	SourceDefault Source = "default"
)

const (
	keywordConfidence = 0.85
	defaultConfidence = 0.3
)

// Match is a categorization decision with its provenance
type Match struct {
	Category   model.ExpenseCategory `json:"category"`
	Source     Source                `json:"source"`
	Confidence float64               `json:"confidence"`
	Matched    string                `json:"matched,omitempty"`
}

// Categorizer maps items and suppliers to expense categories
type Categorizer struct {
	rules  []compiledRule
	logger zerolog.Logger
	now    func() time.Time
}

// Option configures the categorizer
type Option func(*Categorizer)

// WithLogger sets the categorizer logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Categorizer) {
		c.logger = l
	}
}

// WithClock sets the clock used when an invoice carries no date
func WithClock(now func() time.Time) Option {
	return func(c *Categorizer) {
		c.now = now
	}
}

// New creates a categorizer with the given supplier rules, tried in order.
func New(rules []model.CategoryMappingRule, opts ...Option) (*Categorizer, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	c := &Categorizer{
		rules:  compiled,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewDefault creates a categorizer with DefaultRules
func NewDefault(opts ...Option) *Categorizer {
	c, err := New(DefaultRules, opts...)
	if err != nil {
		panic("categorizer: invalid default rules: " + err.Error())
	}
	return c
}

// Categorize returns the category for item bought from supplierName
func (c *Categorizer) Categorize(item model.InvoiceItem, supplierName string) model.ExpenseCategory {
	return c.Match(item.Description, supplierName).Category
}

// Match checks the description against the keyword table, then the supplier
// rules in order. The first hit wins; OTHER otherwise.
func (c *Categorizer) Match(description, supplierName string) Match {
	if desc := textutil.Fold(description); desc != "" {
		for _, group := range keywordTable {
			for _, kw := range group.keywords {
				if strings.Contains(desc, kw) {
					return Match{Category: group.category, Source: SourceKeyword, Confidence: keywordConfidence, Matched: kw}
				}
			}
		}
	}

	if supplier := textutil.Fold(supplierName); supplier != "" {
		for _, r := range c.rules {
			if r.pattern != nil {
				if m := r.pattern.FindString(supplier); m != "" {
					return Match{Category: r.rule.SuggestedCategory, Source: SourceRule, Confidence: r.rule.Confidence, Matched: m}
				}
			}
			for _, kw := range r.keywords {
				if strings.Contains(supplier, kw) {
					return Match{Category: r.rule.SuggestedCategory, Source: SourceRule, Confidence: r.rule.Confidence, Matched: kw}
				}
			}
		}
	}

	return Match{Category: model.CategoryOther, Source: SourceDefault, Confidence: defaultConfidence}
}
