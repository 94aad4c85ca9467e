package templates

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeagents/pkg/errors"
)

func TestRegistryLoadAndRender(t *testing.T) {
	base := t.TempDir()
	agentDir := filepath.Join(base, "agents")
	if err := os.MkdirAll(agentDir, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	tplPath := filepath.Join(agentDir, "reviewer.tmpl")
	initial := "Review {{.Path}}"
	if err := os.WriteFile(tplPath, []byte(initial), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	reg, err := NewRegistry(base)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	tmpl, err := reg.GetTemplate("agents/reviewer")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}

	rendered, err := tmpl.Render(map[string]string{"Path": "a.py"})
	if err != nil {
		t.Fatalf("render template: %v", err)
	}
	if rendered != "Review a.py" {
		t.Fatalf("unexpected render result: %s", rendered)
	}

	if err := os.WriteFile(tplPath, []byte("Check {{.Path}}"), 0o644); err != nil {
		t.Fatalf("rewrite template: %v", err)
	}

	rendered, err = tmpl.Render(map[string]string{"Path": "b.py"})
	if err != nil {
		t.Fatalf("render template after update: %v", err)
	}
	if rendered != "Review b.py" {
		t.Fatalf("expected loaded template to keep initial content, got: %s", rendered)
	}
}

func TestRegistryLazyLoad(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	path := filepath.Join(base, "docs", "summary.tmpl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dirs: %v", err)
	}
	if err := os.WriteFile(path, []byte("Summary of {{.Path}}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	rendered, err := reg.Render("docs/summary", map[string]string{"Path": "main.go"})
	if err != nil {
		t.Fatalf("render lazily loaded template: %v", err)
	}
	if rendered != "Summary of main.go" {
		t.Fatalf("unexpected render output: %s", rendered)
	}
}

func TestRegistryMissingTemplate(t *testing.T) {
	reg, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("init registry: %v", err)
	}

	if _, err := reg.Render("nope", nil); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEmbeddedCodeAnalyzerPrompt(t *testing.T) {
	data := struct {
		Path            string
		Language        string
		Content         string
		Categories      []string
		MaxContentRunes int
	}{
		Path:            "app.py",
		Language:        "python",
		Content:         "import os\npassword = \"hunter2\"",
		Categories:      []string{"security", "bugs"},
		MaxContentRunes: 1000,
	}

	out, err := Get().Render("code_analyzer/analyze", data)
	if err != nil {
		t.Fatalf("render embedded prompt: %v", err)
	}

	for _, want := range []string{"File: app.py", "```python", "2 | password = \"hunter2\"", "- security", "- bugs", "\"findings\""} {
		if !strings.Contains(out, want) {
			t.Fatalf("prompt missing %q:\n%s", want, out)
		}
	}
}

func TestRegistryMissingDirectory(t *testing.T) {
	if _, err := NewRegistry(filepath.Join(t.TempDir(), "absent")); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "prompt.tmpl")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewRegistry(file); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
