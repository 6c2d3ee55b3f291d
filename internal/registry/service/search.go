package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/embeddings"
)

const (
	// DefaultSearchLimit applies when the caller passes no limit.
	DefaultSearchLimit = 10
	// MaxSearchLimit caps one search request.
	MaxSearchLimit = 50
	// maxVectorCandidates is the vector index per-call ceiling.
	maxVectorCandidates = 256
)

// Tokenize lowercases the query and extracts alphanumeric runs of length
// two or more.
func Tokenize(query string) []string {
	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() >= 2 {
			tokens = append(tokens, current.String())
		}
		current.Reset()
	}
	for _, r := range strings.ToLower(query) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// matchesAllTokens reports whether every token appears as a whole word in
// the haystack, case-insensitively.
func matchesAllTokens(tokens []string, haystack string) bool {
	words := map[string]bool{}
	for _, w := range Tokenize(haystack) {
		words[w] = true
	}
	for _, tok := range tokens {
		if !words[tok] {
			return false
		}
	}
	return true
}

func clampCandidates(n int) int {
	if n < 1 {
		return 1
	}
	if n > maxVectorCandidates {
		return maxVectorCandidates
	}
	return n
}

// Search recalls candidates from the vector index and gates them on exact
// token overlap, doubling the candidate window until enough exact matches
// surface or the index runs dry.
func (s *registryService) Search(ctx context.Context, query string, limit int, highlightedOnly bool) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	if s.provider == nil {
		return nil, nil
	}
	result, err := s.provider.Generate(ctx, embeddings.Payload{Text: strings.TrimSpace(query)})
	if err != nil {
		// Search is best-effort: degrade to empty rather than failing.
		log.Printf("search embedding failed: %v", err)
		return nil, nil
	}

	limitC := clampCandidates(max(limit*3, 50))
	maxC := clampCandidates(max(limit*10, 200))

	for {
		hits, err := s.db.VectorSearch(ctx, nil, result.Vector, limitC, models.SearchableVisibilities)
		if err != nil {
			return nil, fmt.Errorf("vector search failed: %w", err)
		}

		matches, err := s.gateHits(ctx, hits, tokens, highlightedOnly)
		if err != nil {
			return nil, err
		}

		if len(matches) >= limit || len(hits) < limitC || limitC >= maxC {
			if len(matches) > limit {
				matches = matches[:limit]
			}
			return matches, nil
		}
		limitC = clampCandidates(min(limitC*2, maxC))
	}
}

// gateHits hydrates vector candidates and keeps only exact-token matches,
// preserving vector order.
func (s *registryService) gateHits(ctx context.Context, hits []database.EmbeddingHit, tokens []string, highlightedOnly bool) ([]models.SearchResult, error) {
	var matches []models.SearchResult
	for _, hit := range hits {
		skill, err := s.db.GetSkillByID(ctx, nil, hit.Embedding.SkillID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to hydrate skill: %w", err)
		}
		if !skill.Visible() {
			continue
		}

		if highlightedOnly {
			badges, err := s.db.ListBadges(ctx, nil, skill.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load badges: %w", err)
			}
			highlighted := false
			for _, b := range badges {
				if b.Kind == models.BadgeHighlighted {
					highlighted = true
				}
			}
			if !highlighted {
				continue
			}
		}

		haystack := skill.DisplayName + " " + skill.Slug + " " + skill.Summary
		if !matchesAllTokens(tokens, haystack) {
			continue
		}

		versionStr := ""
		if v, err := s.db.GetVersion(ctx, nil, hit.Embedding.VersionID); err == nil {
			versionStr = v.Version
		}

		matches = append(matches, models.SearchResult{
			Score:       hit.Score,
			Slug:        skill.Slug,
			DisplayName: skill.DisplayName,
			Summary:     skill.Summary,
			Version:     versionStr,
			UpdatedAt:   skill.UpdatedAt,
		})
	}
	return matches, nil
}
