package bundle

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidSlug reports whether s is a lowercase url-safe skill slug.
func ValidSlug(s string) bool {
	return slugRe.MatchString(s)
}

// textExtensions is the allow-list of file extensions accepted in a bundle.
// Bundles are text-only; anything else is rejected at publish time.
var textExtensions = map[string]bool{
	".md":        true,
	".markdown":  true,
	".txt":       true,
	".text":      true,
	".json":      true,
	".yaml":      true,
	".yml":       true,
	".toml":      true,
	".ini":       true,
	".cfg":       true,
	".conf":      true,
	".csv":       true,
	".tsv":       true,
	".xml":       true,
	".html":      true,
	".css":       true,
	".js":        true,
	".ts":        true,
	".py":        true,
	".sh":        true,
	".bash":      true,
	".zsh":       true,
	".sql":       true,
	".env":       true,
	".gitignore": true,
	".license":   true,
}

// textContentTypes maps accepted declared content types.
var textContentTypes = map[string]bool{
	"text/markdown":          true,
	"text/plain":             true,
	"text/x-markdown":        true,
	"text/html":              true,
	"text/css":               true,
	"text/csv":               true,
	"text/xml":               true,
	"application/json":       true,
	"application/yaml":       true,
	"application/x-yaml":     true,
	"application/toml":       true,
	"application/xml":        true,
	"application/x-sh":       true,
	"application/javascript": true,
	"application/typescript": true,
}

// AllowedFile reports whether a file with the given path and optional
// declared content type is accepted. Extensionless dotfiles like
// ".gitignore" pass by their full name.
func AllowedFile(p, contentType string) bool {
	if contentType != "" {
		base, _, _ := strings.Cut(contentType, ";")
		if textContentTypes[strings.ToLower(strings.TrimSpace(base))] {
			return true
		}
	}
	name := strings.ToLower(path.Base(p))
	if ext := path.Ext(name); ext != "" && textExtensions[ext] {
		return true
	}
	return textExtensions["."+strings.TrimPrefix(name, ".")]
}

// SanitizePath validates a bundle-relative file path: non-empty, forward
// slashes only, no leading slash, no ".." components. Returns the cleaned
// path.
func SanitizePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty file path")
	}
	if strings.Contains(p, `\`) {
		return "", fmt.Errorf("backslash in file path %q", p)
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("absolute file path %q", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("parent traversal in file path %q", p)
		}
		if part == "" {
			return "", fmt.Errorf("empty component in file path %q", p)
		}
	}
	return path.Clean(p), nil
}

// IsSkillMd reports whether p is the bundle's manifest file. The match is
// case-insensitive and accepts the legacy "skills.md" spelling.
func IsSkillMd(p string) bool {
	name := strings.ToLower(path.Base(p))
	return (name == "skill.md" || name == "skills.md") && !strings.Contains(p, "/")
}
