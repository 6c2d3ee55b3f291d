package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

const (
	// fingerprintRowLimit bounds the indexed lookup before falling back.
	fingerprintRowLimit = 25
	// recomputeVersionLimit bounds the newest-first recompute fallback.
	recomputeVersionLimit = 200
)

// Resolve maps (slug, hash) to a previously published version. It is a
// pure read: no state is mutated.
func (s *registryService) Resolve(ctx context.Context, slug, hash string) (*models.ResolveResponse, error) {
	if !bundle.ValidSlug(slug) {
		return nil, E(KindValidation, "invalid slug %q", slug)
	}
	if !bundle.IsHexDigest(hash) {
		return nil, E(KindValidation, "hash must be 64 lowercase hex characters")
	}

	skill, err := s.db.GetSkillBySlug(ctx, nil, slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &models.ResolveResponse{}, nil
		}
		return nil, fmt.Errorf("failed to load skill: %w", err)
	}
	if skill.SoftDeletedAt != nil {
		return &models.ResolveResponse{}, nil
	}

	resp := &models.ResolveResponse{}

	// Indexed lookup first: newest fingerprint row whose version is alive.
	rows, err := s.db.ListFingerprints(ctx, nil, skill.ID, hash, fingerprintRowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprints: %w", err)
	}
	for _, row := range rows {
		v, err := s.db.GetVersion(ctx, nil, row.VersionID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load version: %w", err)
		}
		if v.SoftDeletedAt == nil {
			resp.Match = &models.VersionRef{ID: v.ID, Version: v.Version}
			break
		}
	}

	// Fallback: recompute fingerprints over recent versions.
	if resp.Match == nil {
		cursor := ""
		scanned := 0
	scan:
		for scanned < recomputeVersionLimit {
			versions, next, err := s.db.ListVersions(ctx, nil, skill.ID, cursor, 50)
			if err != nil {
				return nil, fmt.Errorf("failed to list versions: %w", err)
			}
			for _, v := range versions {
				scanned++
				if v.SoftDeletedAt != nil {
					continue
				}
				digests := make([]bundle.FileDigest, 0, len(v.Files))
				for _, f := range v.Files {
					digests = append(digests, bundle.FileDigest{Path: f.Path, SHA256: f.SHA256})
				}
				if bundle.Fingerprint(digests) == hash {
					resp.Match = &models.VersionRef{ID: v.ID, Version: v.Version}
					break scan
				}
				if scanned >= recomputeVersionLimit {
					break scan
				}
			}
			if next == "" || len(versions) == 0 {
				break
			}
			cursor = next
		}
	}

	if skill.LatestVersionID != "" {
		latest, err := s.db.GetVersion(ctx, nil, skill.LatestVersionID)
		if err == nil {
			resp.LatestVersion = &models.VersionRef{ID: latest.ID, Version: latest.Version}
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to load latest version: %w", err)
		}
	}

	return resp, nil
}
