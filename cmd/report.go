package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	domain "codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func writeReport(w io.Writer, format string, report *domain.Report) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			*domain.Report
			Summary domain.Summary `json:"summary"`
		}{report, report.Summarize()}); err != nil {
			return errors.Wrap(err, "encode report")
		}
		return nil
	}

	writeText(w, report)
	return nil
}

func writeText(w io.Writer, report *domain.Report) {
	for _, res := range report.Results {
		header := res.Path
		switch {
		case res.Degraded:
			header += fmt.Sprintf("  [fallback: %s]", res.FallbackReason)
		case res.Source == domain.SourceModel:
			header += fmt.Sprintf("  [%s]", res.Model)
		}
		fmt.Fprintln(w, header)

		if res.Summary != "" {
			fmt.Fprintf(w, "  %s\n", res.Summary)
		}
		if len(res.Findings) == 0 && res.Raw == "" {
			fmt.Fprintln(w, "  no issues found")
		}
		for _, f := range res.Findings {
			loc := "-"
			if f.Line > 0 {
				loc = fmt.Sprintf("%d", f.Line)
			}
			fmt.Fprintf(w, "  %-6s %-4s %-14s %s\n", strings.ToUpper(string(f.Severity)), loc, f.Category, describe(f))
		}
		if res.Raw != "" && len(res.Findings) == 0 {
			fmt.Fprintf(w, "  model response:\n%s\n", indent(res.Raw, "    "))
		}
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "%s\n  FAILED (%s): %s\n", f.Path, f.Kind, f.Error)
	}

	s := report.Summarize()
	fmt.Fprintf(w, "\n%s analyzed, %s failed, %s degraded: %s (%d high, %d medium, %d low)",
		plural(s.Files, "file"),
		humanize.Comma(int64(s.Failed)),
		humanize.Comma(int64(s.Degraded)),
		plural(s.Findings, "finding"),
		s.BySeverity[domain.SeverityHigh],
		s.BySeverity[domain.SeverityMedium],
		s.BySeverity[domain.SeverityLow],
	)
	if s.Tokens > 0 {
		fmt.Fprintf(w, ", %s tokens", humanize.Comma(s.Tokens))
	}
	fmt.Fprintf(w, " in %s\n", report.Duration.Round(time.Millisecond))
}

func describe(f domain.Finding) string {
	if f.Description == "" {
		return f.Pattern
	}
	if f.Pattern != "" {
		return fmt.Sprintf("%s (%s)", f.Description, f.Pattern)
	}
	return f.Description
}

func plural(n int, word string) string {
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, word, "")
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
