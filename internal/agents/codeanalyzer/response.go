package codeanalyzer

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"codeagents/internal/domain/analysis"
)

// modelReport is the structure the analysis prompt asks the model to return
type modelReport struct {
	Summary  string         `json:"summary" yaml:"summary"`
	Findings []modelFinding `json:"findings" yaml:"findings"`
}

type modelFinding struct {
	Category    string `json:"category" yaml:"category"`
	Severity    string `json:"severity" yaml:"severity"`
	Line        int    `json:"line" yaml:"line"`
	Description string `json:"description" yaml:"description"`
	Issue       string `json:"issue" yaml:"issue"`
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)\\n?```")

// parseModelResponse extracts findings from a model reply.
// JSON is tried first (fenced or bare), then YAML. ok is false when nothing structured was found.
func parseModelResponse(text string, lineCount int) (summary string, findings []analysis.Finding, ok bool) {
	body := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}

	report, ok := decodeJSON(body)
	if !ok {
		report, ok = decodeYAML(body)
	}
	if !ok {
		return "", nil, false
	}

	for _, f := range report.Findings {
		description := f.Description
		if description == "" {
			description = f.Issue
		}
		if description == "" {
			continue
		}

		line := f.Line
		if line < 0 || line > lineCount {
			line = 0
		}

		category := strings.ToLower(strings.TrimSpace(f.Category))
		if category == "" {
			category = "general"
		}

		findings = append(findings, analysis.Finding{
			Category:    category,
			Severity:    analysis.ParseSeverity(f.Severity),
			Line:        line,
			Description: description,
		})
	}

	return strings.TrimSpace(report.Summary), findings, true
}

func decodeJSON(body string) (modelReport, bool) {
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return modelReport{}, false
	}
	raw := []byte(body[start : end+1])

	var report modelReport
	if err := json.Unmarshal(raw, &report); err == nil && len(report.Findings) > 0 {
		return report, true
	}

	// Models often answer with one key per category instead of a findings list
	var byCategory map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byCategory); err != nil {
		return modelReport{}, false
	}
	return fromCategories(byCategory)
}

func fromCategories(byCategory map[string]json.RawMessage) (modelReport, bool) {
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var report modelReport
	for _, category := range categories {
		raw := byCategory[category]

		var summary string
		if strings.EqualFold(category, "summary") && json.Unmarshal(raw, &summary) == nil {
			report.Summary = summary
			continue
		}

		var structured []modelFinding
		if err := json.Unmarshal(raw, &structured); err == nil {
			for _, f := range structured {
				if f.Category == "" {
					f.Category = category
				}
				report.Findings = append(report.Findings, f)
			}
			continue
		}

		var plain []string
		if err := json.Unmarshal(raw, &plain); err == nil {
			for _, p := range plain {
				report.Findings = append(report.Findings, modelFinding{Category: category, Description: p})
			}
		}
	}

	return report, report.Summary != "" || len(report.Findings) > 0
}

func decodeYAML(body string) (modelReport, bool) {
	var report modelReport
	if err := yaml.Unmarshal([]byte(body), &report); err != nil {
		return modelReport{}, false
	}
	return report, report.Summary != "" || len(report.Findings) > 0
}
