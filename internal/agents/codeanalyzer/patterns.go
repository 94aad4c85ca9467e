package codeanalyzer

import (
	"regexp"
	"sort"
	"strings"

	"codeagents/internal/adapters/config"
	"codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

// Rule is a compiled pattern of one category
type Rule struct {
	Category    string
	Name        string
	Severity    analysis.Severity
	Description string

	re *regexp.Regexp
}

// PatternMatcher is the deterministic analysis path. It holds only immutable compiled rules.
type PatternMatcher struct {
	rules []Rule
}

// NewPatternMatcher compiles the configured rules. Rules match line-anchored (^ and $ bind at line breaks).
func NewPatternMatcher(patterns map[string][]config.PatternConfig) (*PatternMatcher, error) {
	categories := make([]string, 0, len(patterns))
	for category := range patterns {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	errs := &errors.MultiError{}
	m := &PatternMatcher{}
	for _, category := range categories {
		for _, p := range patterns[category] {
			re, err := regexp.Compile("(?m)" + p.Pattern)
			if err != nil {
				errs.Add(errors.NewValidationError("patterns."+category, err.Error(), p.Pattern))
				continue
			}

			name := p.Name
			if name == "" {
				name = p.Pattern
			}
			m.rules = append(m.rules, Rule{
				Category:    category,
				Name:        name,
				Severity:    analysis.ParseSeverity(p.Severity),
				Description: p.Description,
				re:          re,
			})
		}
	}

	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return m, nil
}

// Rules returns the compiled rules in evaluation order
func (m *PatternMatcher) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// Match returns every rule match in content, ordered by line then category, rule and match.
func (m *PatternMatcher) Match(content string) []analysis.Finding {
	findings := make([]analysis.Finding, 0)
	if content == "" {
		return findings
	}

	lines := newLineIndex(content)
	for _, rule := range m.rules {
		for _, loc := range rule.re.FindAllStringIndex(content, -1) {
			findings = append(findings, analysis.Finding{
				Category:    rule.Category,
				Pattern:     rule.Name,
				Severity:    rule.Severity,
				Line:        lines.lineOf(loc[0]),
				Match:       content[loc[0]:loc[1]],
				Description: rule.Description,
			})
		}
	}

	sortFindings(findings)
	return findings
}

func sortFindings(findings []analysis.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Pattern != b.Pattern {
			return a.Pattern < b.Pattern
		}
		if a.Match != b.Match {
			return a.Match < b.Match
		}
		return a.Description < b.Description
	})
}

// lineIndex maps byte offsets to 1-based line numbers
type lineIndex []int

func newLineIndex(content string) lineIndex {
	idx := make(lineIndex, 1, strings.Count(content, "\n")+1)
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (idx lineIndex) lineOf(offset int) int {
	return sort.Search(len(idx), func(i int) bool { return idx[i] > offset })
}

func (idx lineIndex) lines() int {
	return len(idx)
}
