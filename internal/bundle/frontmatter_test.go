package bundle

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	doc := []byte("---\nname: demo\ndescription: |\n  Does demo things.\n  Across two lines.\nmetadata:\n  homepage: https://example.com\n---\n# Demo\n\nBody text.")

	fm, body, err := ParseFrontmatter(doc)
	require.NoError(t, err)
	assert.Equal(t, "demo", fm.Name)
	assert.Contains(t, fm.Description, "Across two lines")
	assert.JSONEq(t, `{"homepage":"https://example.com"}`, string(fm.Metadata))
	assert.Equal(t, "# Demo\n\nBody text.", body)
}

func TestParseFrontmatter_NoBlock(t *testing.T) {
	fm, body, err := ParseFrontmatter([]byte("# Just a readme\n"))
	require.NoError(t, err)
	assert.Empty(t, fm.Name)
	assert.Equal(t, "# Just a readme\n", body)
}

func TestParseFrontmatter_CRLF(t *testing.T) {
	fm, body, err := ParseFrontmatter([]byte("---\r\nname: demo\r\n---\r\nBody"))
	require.NoError(t, err)
	assert.Equal(t, "demo", fm.Name)
	assert.Equal(t, "Body", body)
}

func TestParseFrontmatter_BadYAML(t *testing.T) {
	_, _, err := ParseFrontmatter([]byte("---\nname: [unclosed\n---\nBody"))
	assert.Error(t, err)
}

func TestEmbeddingText_SkipsMarkdownExtras(t *testing.T) {
	fm := &Frontmatter{Name: "demo", Description: "A demo skill"}
	extra := map[string]string{
		"notes.md":    "should be skipped",
		"config.yaml": "port: 8080",
	}

	text := EmbeddingText(fm, "Body", extra)
	assert.Contains(t, text, "demo")
	assert.Contains(t, text, "port: 8080")
	assert.NotContains(t, text, "should be skipped")
}

func TestEmbeddingText_Truncates(t *testing.T) {
	body := strings.Repeat("x", 20000)
	text := EmbeddingText(nil, body, nil)
	assert.LessOrEqual(t, len(text), 12000)
}

func TestEmbeddingText_TruncatesOnRuneBoundary(t *testing.T) {
	// Multi-byte runes must not be split by the cap.
	body := strings.Repeat("héllo wörld ", 2000)
	text := EmbeddingText(nil, body, nil)
	assert.LessOrEqual(t, len(text), 12000)
	assert.True(t, utf8.ValidString(text))
}
