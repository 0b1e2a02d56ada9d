// Package rules holds the keyword and section-inference rule tables used
// by query classification, context expansion, and confidence scoring.
// The tables live in an embedded YAML file so rules stay independent of
// the matching engine and testable on their own.
package rules

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// vs / vs. as a standalone token also signals comparison intent.
var vsTokenPattern = regexp.MustCompile(`\bvs\.?(\s|$)`)

// SectionRule maps one section category to its canonical section titles
// and the query keywords that point at it.
type SectionRule struct {
	Category             string   `yaml:"category"`
	Titles               []string `yaml:"titles"`
	InferKeywords        []string `yaml:"infer_keywords"`
	CompletenessKeywords []string `yaml:"completeness_keywords"`
	AxisKeywords         []string `yaml:"axis_keywords"`
}

// Tables is the full, ordered rule set.
type Tables struct {
	LecturerKeywords        []string      `yaml:"lecturer_keywords"`
	ComparisonKeywords      []string      `yaml:"comparison_keywords"`
	Sections                []SectionRule `yaml:"sections"`
	DefaultExpandCategories []string      `yaml:"default_expand_categories"`
	DefaultAxisCategories   []string      `yaml:"default_axis_categories"`
}

// Load parses the embedded rule tables.
func Load() (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(rulesYAML, &t); err != nil {
		return nil, fmt.Errorf("parse rule tables: %w", err)
	}
	if len(t.Sections) == 0 {
		return nil, fmt.Errorf("rule tables contain no section rules")
	}
	return &t, nil
}

// MustLoad panics on a malformed embedded table. The file ships with the
// binary, so failure here is a build defect.
func MustLoad() *Tables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

// IsLecturerQuery reports lecturer intent from the fixed keyword set.
func (t *Tables) IsLecturerQuery(query string) bool {
	return containsAny(strings.ToLower(query), t.LecturerKeywords)
}

// IsComparisonQuery reports comparison intent from keywords or a
// standalone vs/vs. token.
func (t *Tables) IsComparisonQuery(query string) bool {
	ql := strings.ToLower(query)
	if containsAny(ql, t.ComparisonKeywords) {
		return true
	}
	return vsTokenPattern.MatchString(ql)
}

// InferTargetSections returns the section titles implied by the query,
// first matching rule wins. Nil means nothing was implied.
func (t *Tables) InferTargetSections(query string) []string {
	ql := strings.ToLower(query)
	for _, rule := range t.Sections {
		if containsAny(ql, rule.InferKeywords) {
			return append([]string(nil), rule.Titles...)
		}
	}
	return nil
}

// ExpectedCategories returns every section category the query implies,
// used by the completeness signal. Unlike inference this is not
// first-match-wins: a query can imply several categories at once.
func (t *Tables) ExpectedCategories(query string) []string {
	ql := strings.ToLower(query)
	var out []string
	for _, rule := range t.Sections {
		if containsAny(ql, rule.CompletenessKeywords) {
			out = append(out, rule.Category)
		}
	}
	return out
}

// ComparisonAxes merges keyword-triggered axes with the always-included
// default axes, deduplicated preserving order.
func (t *Tables) ComparisonAxes(query string) []string {
	ql := strings.ToLower(query)

	var all []string
	all = append(all, t.InferTargetSections(query)...)
	for _, rule := range t.Sections {
		if containsAny(ql, rule.AxisKeywords) {
			all = append(all, rule.Titles...)
		}
	}
	for _, category := range t.DefaultAxisCategories {
		all = append(all, t.TitlesFor(category)...)
	}
	return dedupe(all)
}

// DefaultExpandSections returns the fallback section set for context
// expansion when the query implies nothing specific.
func (t *Tables) DefaultExpandSections() []string {
	var out []string
	for _, category := range t.DefaultExpandCategories {
		out = append(out, t.TitlesFor(category)...)
	}
	return dedupe(out)
}

// TitlesFor returns the canonical titles of one section category.
func (t *Tables) TitlesFor(category string) []string {
	for _, rule := range t.Sections {
		if rule.Category == category {
			return append([]string(nil), rule.Titles...)
		}
	}
	return nil
}

// CategoryPresentIn reports whether any returned section title contains
// the category word (case-insensitive), e.g. "prerequisites" in
// "Prerequisites".
func CategoryPresentIn(category, sectionTitle string) bool {
	return strings.Contains(strings.ToLower(sectionTitle), strings.ToLower(category))
}

func containsAny(haystackLower string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(haystackLower, needle) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
