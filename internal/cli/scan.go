package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/clawdhub/clawdhub/internal/bundle"
)

// LocalSkill is one skill folder discovered on disk, hashed the same way the
// server fingerprints published bundles.
type LocalSkill struct {
	Slug        string
	Dir         string
	Files       map[string][]byte
	Digests     []bundle.FileDigest
	Fingerprint string
}

var slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)

// frontmatterName extracts the name field from SKILL.md frontmatter.
func frontmatterName(data []byte) string {
	fm, _, err := bundle.ParseFrontmatter(data)
	if err != nil || fm == nil {
		return ""
	}
	return strings.TrimSpace(fm.Name)
}

// Slugify derives a registry slug from a folder name.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugCleanRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// DiscoverRoots merges explicit roots, the configured install directory and
// companion defaults, deduplicated by resolved path.
func DiscoverRoots(workdir, dir string, extra []string) []string {
	candidates := make([]string, 0, len(extra)+3)
	candidates = append(candidates, extra...)
	candidates = append(candidates, filepath.Join(workdir, dir))
	if dir != "skills" {
		candidates = append(candidates, filepath.Join(workdir, "skills"))
	}
	// Workspace pointer file: one extra root per line.
	if data, err := os.ReadFile(filepath.Join(workdir, ".clawdhub", "roots")); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				candidates = append(candidates, line)
			}
		}
	}

	seen := map[string]bool{}
	var roots []string
	for _, c := range candidates {
		resolved, err := filepath.EvalSymlinks(c)
		if err != nil {
			resolved, err = filepath.Abs(c)
			if err != nil {
				resolved = c
			}
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		roots = append(roots, c)
	}
	return roots
}

// hasSkillMarker reports whether dir directly contains a SKILL.md (or the
// legacy skills.md), case-insensitively.
func hasSkillMarker(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lower := strings.ToLower(e.Name())
		if lower == "skill.md" || lower == "skills.md" {
			return true
		}
	}
	return false
}

// ScanRoots finds skill folders under the given roots. When nothing is found
// it retries the workdir itself as a legacy fallback.
func ScanRoots(roots []string, workdir string) ([]string, error) {
	dirs := scan(roots)
	if len(dirs) == 0 {
		dirs = scan([]string{workdir})
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no skill folders found; expected subdirectories containing SKILL.md under %s", strings.Join(roots, ", "))
	}
	return dirs, nil
}

func scan(roots []string) []string {
	var dirs []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			sub := filepath.Join(root, e.Name())
			if hasSkillMarker(sub) {
				dirs = append(dirs, sub)
			}
		}
	}
	sort.Strings(dirs)
	return dirs
}

// DedupeBySlug keeps the first folder per slug and reports the rest.
func DedupeBySlug(dirs []string) (kept []string, skipped []string) {
	seen := map[string]bool{}
	for _, d := range dirs {
		slug := Slugify(filepath.Base(d))
		if seen[slug] {
			skipped = append(skipped, d)
			continue
		}
		seen[slug] = true
		kept = append(kept, d)
	}
	return kept, skipped
}

// HashFolder reads a skill folder's text files and computes the bundle
// fingerprint exactly as the server does.
func HashFolder(dir string) (*LocalSkill, error) {
	files := map[string][]byte{}
	var digests []bundle.FileDigest

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".clawdhub" || (p != dir && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !bundle.AllowedFile(rel, "") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files[rel] = data
		digests = append(digests, bundle.FileDigest{Path: rel, SHA256: bundle.HashBytes(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no publishable text files in %s", dir)
	}

	return &LocalSkill{
		Slug:        Slugify(filepath.Base(dir)),
		Dir:         dir,
		Files:       files,
		Digests:     digests,
		Fingerprint: bundle.Fingerprint(digests),
	}, nil
}
