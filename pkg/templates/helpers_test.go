package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumberLines(t *testing.T) {
	in := "a\nb\nc\nd\ne\nf\ng\nh\ni\nj"
	out := NumberLines(in)

	assert.Contains(t, out, " 1 | a\n")
	assert.Contains(t, out, "10 | j")
	assert.Equal(t, "1 | only", NumberLines("only"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", Truncate(10, "héllo"))
	assert.Equal(t, "hé\n... [truncated]", Truncate(2, "héllo"))
	assert.Equal(t, "héllo", Truncate(0, "héllo"))
}

func TestFence(t *testing.T) {
	assert.Equal(t, "```go\nx := 1\n```", Fence("go", "x := 1"))

	out := Fence("md", "```inner```")
	assert.Equal(t, "````md\n```inner```\n````", out)
}

func TestSafeText(t *testing.T) {
	assert.Equal(t, "ok", SafeText("o\xffk"))
}
