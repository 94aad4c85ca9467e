package templates

import (
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"
)

// FuncMap returns the helpers available inside every prompt template
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"numberLines": NumberLines,
		"truncate":    Truncate,
		"fence":       Fence,
		"safe":        SafeText,
		"join":        strings.Join,
	}
}

// NumberLines prefixes each line with its 1-based number so the model can cite lines
func NumberLines(text string) string {
	lines := strings.Split(text, "\n")
	width := len(fmt.Sprint(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%*d | %s", width, i+1, line)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Truncate cuts text to at most limit runes, marking the cut
func Truncate(limit int, text string) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + "\n... [truncated]"
}

// Fence wraps code in a markdown fence that cannot be closed by the code itself
func Fence(language, code string) string {
	fence := "```"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	return fence + language + "\n" + code + "\n" + fence
}

// SafeText removes invalid UTF-8 sequences
func SafeText(text string) string {
	return strings.ToValidUTF8(text, "")
}
