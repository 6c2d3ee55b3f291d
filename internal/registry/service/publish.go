package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/changelog"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/embeddings"
)

// Publish runs the full pipeline: validate, read external collaborators,
// commit atomically, then schedule fire-and-forget side effects. External
// I/O (blob reads, changelog, embedding) completes before the transaction
// so a provider failure never leaves partial durable state.
func (s *registryService) Publish(ctx context.Context, userID string, req *models.PublishRequest, inline map[string][]byte) (*models.PublishResponse, error) {
	if userID == "" {
		return nil, E(KindUnauthorized, "authentication required")
	}

	if err := s.validatePublish(req); err != nil {
		return nil, err
	}

	existing, err := s.db.GetSkillBySlug(ctx, nil, req.Slug)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up skill: %w", err)
	}
	if existing != nil {
		if existing.OwnerUserID != userID {
			return nil, E(KindForbidden, "slug %q is owned by another user", req.Slug)
		}
		if _, err := s.db.GetVersionBySkillAndVersion(ctx, nil, existing.ID, req.Version); err == nil {
			return nil, E(KindConflict, "version %s already exists for %q", req.Version, req.Slug)
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to check version: %w", err)
		}
	}

	// Store inline multipart bytes, filling in storage ids and digests.
	files, contents, err := s.resolveFiles(ctx, req, inline)
	if err != nil {
		return nil, err
	}

	digests := make([]bundle.FileDigest, 0, len(files))
	for _, f := range files {
		digests = append(digests, bundle.FileDigest{Path: f.Path, SHA256: f.SHA256})
	}
	fingerprint := bundle.Fingerprint(digests)

	skillMdPath := ""
	for _, f := range files {
		if bundle.IsSkillMd(f.Path) {
			skillMdPath = f.Path
		}
	}
	fm, body, err := bundle.ParseFrontmatter(contents[skillMdPath])
	if err != nil {
		return nil, E(KindValidation, "invalid SKILL.md frontmatter: %v", err)
	}

	extra := map[string]string{}
	for p, data := range contents {
		if p == skillMdPath {
			continue
		}
		extra[p] = string(data)
	}
	embeddingText := bundle.EmbeddingText(fm, body, extra)

	forkOf, canonicalID, err := s.resolveLineage(ctx, req, existing, fingerprint)
	if err != nil {
		return nil, err
	}

	entry, source, err := s.resolveChangelog(ctx, req, existing)
	if err != nil {
		return nil, err
	}

	var vector []float32
	var checksum string
	if s.provider != nil {
		checksum = embeddings.PayloadChecksum(embeddingText)
		// An unchanged payload reuses the stored vector instead of paying
		// for another provider round trip.
		if existing != nil {
			prev, err := s.db.GetLatestEmbedding(ctx, nil, existing.ID)
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return nil, fmt.Errorf("failed to load previous embedding: %w", err)
			}
			if prev != nil && prev.Checksum == checksum {
				vector = prev.Vector
			}
		}
		if vector == nil {
			result, err := s.provider.Generate(ctx, embeddings.Payload{Text: embeddingText})
			if err != nil {
				return nil, Wrap(KindEmbeddingUnavailable, err, "Embedding failed for %q", req.Slug)
			}
			vector = result.Vector
		}
	}

	now := time.Now().UTC()
	versionID := uuid.NewString()

	version := &models.SkillVersion{
		ID:              versionID,
		Version:         req.Version,
		Changelog:       entry,
		ChangelogSource: source,
		Files:           files,
		Fingerprint:     fingerprint,
		Parsed: models.ParsedBundle{
			Frontmatter: fm.Raw,
			Metadata:    fm.Metadata,
		},
		CreatedBy: userID,
		CreatedAt: now,
	}

	var skillID string
	err = s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		skill := existing
		if skill == nil {
			skill = &models.Skill{
				ID:               uuid.NewString(),
				Slug:             req.Slug,
				DisplayName:      strings.TrimSpace(req.DisplayName),
				OwnerUserID:      userID,
				Tags:             map[string]string{},
				CanonicalSkillID: canonicalID,
				ForkOf:           forkOf,
				ModerationStatus: models.ModerationActive,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.db.CreateSkill(ctx, tx, skill); err != nil {
				if errors.Is(err, database.ErrAlreadyExists) {
					return E(KindConflict, "slug %q was claimed concurrently", req.Slug)
				}
				return fmt.Errorf("failed to create skill: %w", err)
			}
		}
		skillID = skill.ID
		version.SkillID = skill.ID

		if err := s.db.CreateVersion(ctx, tx, version); err != nil {
			if errors.Is(err, database.ErrVersionExists) {
				return E(KindConflict, "version %s already exists for %q", req.Version, req.Slug)
			}
			return fmt.Errorf("failed to create version: %w", err)
		}
		if err := s.db.CreateFingerprint(ctx, tx, &models.VersionFingerprint{
			SkillID:     skill.ID,
			VersionID:   versionID,
			Fingerprint: fingerprint,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to record fingerprint: %w", err)
		}

		if vector != nil {
			if err := s.commitEmbedding(ctx, tx, skill, versionID, userID, vector, checksum, now); err != nil {
				return err
			}
		}

		tags := map[string]string{models.TagLatest: versionID}
		for k, v := range skill.Tags {
			if k != models.TagLatest {
				tags[k] = v
			}
		}
		for k, v := range req.Tags {
			if k != models.TagLatest {
				tags[k] = v
			}
		}

		displayName := strings.TrimSpace(req.DisplayName)
		restore := false
		patch := &database.SkillPatch{
			DisplayName:     &displayName,
			LatestVersionID: &versionID,
			Tags:            tags,
			SetSoftDeleted:  &restore,
		}
		if fm.Description != "" {
			summary := fm.Description
			patch.Summary = &summary
		}
		if forkOf != nil {
			patch.ForkOf = forkOf
		}
		if canonicalID != "" {
			patch.CanonicalSkillID = &canonicalID
		}
		if _, err := s.db.PatchSkill(ctx, tx, skill.ID, patch); err != nil {
			return fmt.Errorf("failed to update skill: %w", err)
		}
		if err := s.db.BumpSkillStats(ctx, tx, skill.ID, database.StatsDelta{Versions: 1}); err != nil {
			return fmt.Errorf("failed to bump version count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.PublishCommitted(PublishEvent{
		Slug:        req.Slug,
		Version:     req.Version,
		VersionID:   versionID,
		Fingerprint: fingerprint,
		PublishedAt: now,
	})

	return &models.PublishResponse{
		SkillID:     skillID,
		VersionID:   versionID,
		Version:     req.Version,
		Fingerprint: fingerprint,
	}, nil
}

// validatePublish applies the ordered request checks; each failure is fatal.
func (s *registryService) validatePublish(req *models.PublishRequest) error {
	if !bundle.ValidSlug(req.Slug) {
		return E(KindValidation, "invalid slug %q", req.Slug)
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		return E(KindValidation, "displayName must not be empty")
	}
	if _, err := semver.StrictNewVersion(req.Version); err != nil {
		return E(KindValidation, "invalid semver version %q", req.Version)
	}

	if len(req.Files) == 0 {
		return E(KindValidation, "bundle has no files")
	}

	var total int64
	skillMdCount := 0
	seen := map[string]bool{}
	for i := range req.Files {
		clean, err := bundle.SanitizePath(req.Files[i].Path)
		if err != nil {
			return E(KindValidation, "%v", err)
		}
		req.Files[i].Path = clean
		if seen[clean] {
			return E(KindValidation, "duplicate file path %q", clean)
		}
		seen[clean] = true

		if !bundle.AllowedFile(clean, req.Files[i].ContentType) {
			return E(KindUnsupportedMediaType, "file %q is not an allowed text type", clean)
		}
		total += req.Files[i].Size
		if bundle.IsSkillMd(clean) {
			skillMdCount++
		}
	}
	if total > bundle.MaxBundleSize {
		return E(KindPayloadTooLarge, "bundle exceeds %d bytes", bundle.MaxBundleSize)
	}
	if skillMdCount != 1 {
		return E(KindValidation, "bundle must contain exactly one SKILL.md")
	}
	return nil
}

// resolveFiles turns the request manifest into stored version files and
// returns every file's bytes. Inline uploads are written to the blob store
// here; pre-uploaded blobs are read back and digest-checked.
func (s *registryService) resolveFiles(ctx context.Context, req *models.PublishRequest, inline map[string][]byte) ([]models.VersionFile, map[string][]byte, error) {
	files := make([]models.VersionFile, 0, len(req.Files))
	contents := make(map[string][]byte, len(req.Files))

	for _, f := range req.Files {
		var data []byte
		if inline != nil {
			var ok bool
			data, ok = inline[f.Path]
			if !ok {
				return nil, nil, E(KindValidation, "missing upload part for %q", f.Path)
			}
		} else {
			if f.StorageID == "" {
				return nil, nil, E(KindValidation, "file %q has no storageId", f.Path)
			}
			var err error
			data, err = s.store.GetBytes(ctx, f.StorageID)
			if err != nil {
				return nil, nil, E(KindValidation, "stored blob for %q is unavailable", f.Path)
			}
		}

		sum := bundle.HashBytes(data)
		if f.SHA256 != "" && f.SHA256 != sum {
			return nil, nil, E(KindValidation, "digest mismatch for %q", f.Path)
		}

		storageID := f.StorageID
		if storageID == "" {
			storageID = uuid.NewString()
			if err := s.store.Put(ctx, storageID, bytes.NewReader(data)); err != nil {
				return nil, nil, fmt.Errorf("failed to store %q: %w", f.Path, err)
			}
		}

		files = append(files, models.VersionFile{
			Path:        f.Path,
			Size:        int64(len(data)),
			SHA256:      sum,
			StorageID:   storageID,
			ContentType: f.ContentType,
		})
		contents[f.Path] = data
	}
	return files, contents, nil
}

// resolveLineage determines forkOf and the canonical pointer: an explicit
// fork wins; otherwise an identical fingerprint on another live skill marks
// this one a duplicate.
func (s *registryService) resolveLineage(ctx context.Context, req *models.PublishRequest, existing *models.Skill, fingerprint string) (*models.ForkRef, string, error) {
	if existing != nil && existing.ForkOf != nil {
		return nil, "", nil
	}

	if req.ForkOf != nil && req.ForkOf.Slug != "" {
		upstream, err := s.db.GetSkillBySlug(ctx, nil, req.ForkOf.Slug)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, "", E(KindValidation, "fork upstream %q does not exist", req.ForkOf.Slug)
			}
			return nil, "", fmt.Errorf("failed to resolve fork upstream: %w", err)
		}
		canonical := upstream.CanonicalSkillID
		if canonical == "" {
			canonical = upstream.ID
		}
		return &models.ForkRef{
			SkillID: upstream.ID,
			Kind:    models.ForkKindFork,
			Version: req.ForkOf.Version,
		}, canonical, nil
	}

	excludeID := ""
	if existing != nil {
		excludeID = existing.ID
	}
	dupID, err := s.db.FindSkillIDByFingerprint(ctx, nil, fingerprint, excludeID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to probe duplicates: %w", err)
	}
	upstream, err := s.db.GetSkillByID(ctx, nil, dupID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load duplicate upstream: %w", err)
	}
	canonical := upstream.CanonicalSkillID
	if canonical == "" {
		canonical = upstream.ID
	}
	return &models.ForkRef{SkillID: upstream.ID, Kind: models.ForkKindDuplicate}, canonical, nil
}

func (s *registryService) resolveChangelog(ctx context.Context, req *models.PublishRequest, existing *models.Skill) (string, models.ChangelogSource, error) {
	if strings.TrimSpace(req.Changelog) != "" {
		return req.Changelog, models.ChangelogSourceUser, nil
	}

	prev := ""
	if existing != nil && existing.LatestVersionID != "" {
		if v, err := s.db.GetVersion(ctx, nil, existing.LatestVersionID); err == nil {
			prev = v.Version
		}
	}
	paths := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		paths = append(paths, path.Base(f.Path))
	}
	entry, err := s.summarizer.Summarize(ctx, changelog.Input{
		Slug:        req.Slug,
		Version:     req.Version,
		PrevVersion: prev,
		Files:       paths,
	})
	if err != nil {
		return "", models.ChangelogSourceAuto, fmt.Errorf("failed to summarize changelog: %w", err)
	}
	return entry, models.ChangelogSourceAuto, nil
}

// commitEmbedding inserts the new latest embedding and demotes the previous
// one, recomputing its visibility.
func (s *registryService) commitEmbedding(ctx context.Context, tx pgx.Tx, skill *models.Skill, versionID, ownerID string, vector []float32, checksum string, now time.Time) error {
	badges, err := s.db.ListBadges(ctx, tx, skill.ID)
	if err != nil {
		return fmt.Errorf("failed to load badges: %w", err)
	}
	approved := false
	for _, b := range badges {
		if b.Kind == models.BadgeRedactionApproved {
			approved = true
		}
	}

	prev, err := s.db.GetLatestEmbedding(ctx, tx, skill.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to load previous embedding: %w", err)
	}
	if prev != nil {
		notLatest := false
		vis := models.ComputeVisibility(false, prev.IsApproved, false)
		if err := s.db.PatchEmbedding(ctx, tx, prev.ID, &notLatest, nil, &vis); err != nil {
			return fmt.Errorf("failed to demote previous embedding: %w", err)
		}
	}

	emb := &models.SkillEmbedding{
		ID:         uuid.NewString(),
		SkillID:    skill.ID,
		VersionID:  versionID,
		OwnerID:    ownerID,
		Vector:     vector,
		IsLatest:   true,
		IsApproved: approved,
		Visibility: models.ComputeVisibility(true, approved, false),
		Checksum:   checksum,
		UpdatedAt:  now,
	}
	if err := s.db.InsertEmbedding(ctx, tx, emb); err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}
