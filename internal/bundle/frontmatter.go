package bundle

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the recognized projection of a SKILL.md header block.
// Raw keeps everything the publisher wrote so free-form fields survive.
type Frontmatter struct {
	Name        string
	Description string
	Metadata    json.RawMessage
	Raw         map[string]any
}

// ParseFrontmatter splits a SKILL.md document into its YAML frontmatter
// and body. The frontmatter block is delimited by "---" lines at the top
// of the file; a document without one parses to an empty Frontmatter and
// the full content as body.
func ParseFrontmatter(content []byte) (*Frontmatter, string, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	fm := &Frontmatter{Raw: map[string]any{}}

	if !strings.HasPrefix(text, "---\n") && text != "---" {
		return fm, text, nil
	}
	rest := strings.TrimPrefix(text, "---\n")
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return fm, text, nil
	}
	block := rest[:idx]
	body := rest[idx+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &fm.Raw); err != nil {
		return nil, "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	if v, ok := fm.Raw["name"].(string); ok {
		fm.Name = strings.TrimSpace(v)
	}
	if v, ok := fm.Raw["description"].(string); ok {
		fm.Description = strings.TrimSpace(v)
	}
	if v, ok := fm.Raw["metadata"]; ok && v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encoding frontmatter metadata: %w", err)
		}
		fm.Metadata = raw
	}
	return fm, body, nil
}

// maxEmbeddingText caps the payload sent to the embeddings provider.
const maxEmbeddingText = 12000

// EmbeddingText builds the text embedded for a version: frontmatter
// headers, then the SKILL.md body, then each non-markdown text file body,
// truncated to the provider cap.
func EmbeddingText(fm *Frontmatter, body string, extra map[string]string) string {
	var b strings.Builder
	if fm != nil {
		if fm.Name != "" {
			b.WriteString(fm.Name)
			b.WriteString("\n")
		}
		if fm.Description != "" {
			b.WriteString(fm.Description)
			b.WriteString("\n")
		}
	}
	b.WriteString(body)
	paths := make([]string, 0, len(extra))
	for p := range extra {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if ext := strings.ToLower(path.Ext(p)); ext == ".md" || ext == ".markdown" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(extra[p])
		if b.Len() > maxEmbeddingText {
			break
		}
	}
	text := b.String()
	if len(text) > maxEmbeddingText {
		cut := maxEmbeddingText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return strings.TrimSpace(text)
}
