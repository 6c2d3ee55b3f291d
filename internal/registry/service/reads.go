package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

// getVisibleSkill loads a skill by slug and maps deletion and moderation
// state to NotFound.
func (s *registryService) getVisibleSkill(ctx context.Context, slug string) (*models.Skill, error) {
	skill, err := s.db.GetSkillBySlug(ctx, nil, slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, E(KindNotFound, "skill %q not found", slug)
		}
		return nil, fmt.Errorf("failed to load skill: %w", err)
	}
	if !skill.Visible() {
		return nil, E(KindNotFound, "skill %q not found", slug)
	}
	return skill, nil
}

func (s *registryService) GetSkill(ctx context.Context, slug string) (*models.SkillDetail, error) {
	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return nil, err
	}

	detail := &models.SkillDetail{Skill: skill}

	if skill.LatestVersionID != "" {
		latest, err := s.db.GetVersion(ctx, nil, skill.LatestVersionID)
		if err == nil {
			detail.LatestVersion = latest
		} else if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to load latest version: %w", err)
		}
	}

	owner, err := s.db.GetUser(ctx, nil, skill.OwnerUserID)
	if err == nil {
		ref := owner.Ref()
		detail.Owner = &ref
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}

	badges, err := s.db.ListBadges(ctx, nil, skill.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load badges: %w", err)
	}
	for _, b := range badges {
		detail.Badges = append(detail.Badges, *b)
	}

	return detail, nil
}

func (s *registryService) ListSkills(ctx context.Context, sort database.SkillSort, cursor string, limit int) (*models.SkillPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	skills, next, err := s.db.ListSkills(ctx, nil, &database.SkillFilter{Sort: sort}, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	return &models.SkillPage{Skills: skills, NextCursor: next}, nil
}

func (s *registryService) ListVersions(ctx context.Context, slug, cursor string, limit int) (*models.VersionPage, error) {
	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return nil, err
	}

	versions, next, err := s.db.ListVersions(ctx, nil, skill.ID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return &models.VersionPage{Versions: versions, NextCursor: next}, nil
}

// getVersion resolves slug+version, mapping soft-deleted versions to Gone.
func (s *registryService) getVersion(ctx context.Context, slug, version string) (*models.Skill, *models.SkillVersion, error) {
	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	v, err := s.db.GetVersionBySkillAndVersion(ctx, nil, skill.ID, version)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil, E(KindNotFound, "version %s of %q not found", version, slug)
		}
		return nil, nil, fmt.Errorf("failed to load version: %w", err)
	}
	if v.SoftDeletedAt != nil {
		return nil, nil, E(KindGone, "version %s of %q was deleted", version, slug)
	}
	return skill, v, nil
}

func (s *registryService) GetVersion(ctx context.Context, slug, version string) (*models.SkillVersion, error) {
	_, v, err := s.getVersion(ctx, slug, version)
	return v, err
}

// GetFile reads one raw file. Either version or tag selects the version;
// both empty means latest. Files over the raw-read cap are refused.
func (s *registryService) GetFile(ctx context.Context, slug, filePath, version, tag string) (*FileContent, error) {
	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return nil, err
	}

	versionID := skill.LatestVersionID
	switch {
	case version != "":
		v, err := s.db.GetVersionBySkillAndVersion(ctx, nil, skill.ID, version)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, E(KindNotFound, "version %s of %q not found", version, slug)
			}
			return nil, fmt.Errorf("failed to load version: %w", err)
		}
		versionID = v.ID
	case tag != "":
		id, ok := skill.Tags[tag]
		if !ok {
			return nil, E(KindNotFound, "tag %q not found on %q", tag, slug)
		}
		versionID = id
	}
	if versionID == "" {
		return nil, E(KindNotFound, "skill %q has no versions", slug)
	}

	v, err := s.db.GetVersion(ctx, nil, versionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, E(KindNotFound, "version not found")
		}
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	if v.SoftDeletedAt != nil {
		return nil, E(KindGone, "version was deleted")
	}

	file := v.FindFile(filePath)
	if file == nil {
		return nil, E(KindNotFound, "file %q not found in %s@%s", filePath, slug, v.Version)
	}
	if file.Size > bundle.MaxRawFileSize {
		return nil, E(KindPayloadTooLarge, "file %q exceeds the raw read limit", filePath)
	}

	data, err := s.store.GetBytes(ctx, file.StorageID)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(filePath))
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
	}

	return &FileContent{
		Path:        file.Path,
		Content:     data,
		SHA256:      file.SHA256,
		ContentType: contentType,
		Archived:    v.ID != skill.LatestVersionID,
	}, nil
}

// DownloadZip assembles the version's files into a zip with their original
// paths and counts the download.
func (s *registryService) DownloadZip(ctx context.Context, slug, version string) ([]byte, string, error) {
	skill, v, err := s.getVersion(ctx, slug, version)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range v.Files {
		data, err := s.store.GetBytes(ctx, f.StorageID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read blob for %q: %w", f.Path, err)
		}
		w, err := zw.Create(f.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to add %q to zip: %w", f.Path, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, "", fmt.Errorf("failed to write %q to zip: %w", f.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize zip: %w", err)
	}

	if err := s.db.BumpSkillStats(ctx, nil, skill.ID, database.StatsDelta{Downloads: 1}); err != nil {
		return nil, "", fmt.Errorf("failed to count download: %w", err)
	}

	name := fmt.Sprintf("%s-%s.zip", slug, v.Version)
	return buf.Bytes(), name, nil
}
