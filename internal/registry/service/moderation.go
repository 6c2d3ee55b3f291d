package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

// getSkillForModeration loads a skill by slug without the public visibility
// filter; moderation acts on hidden and soft-deleted skills too.
func (s *registryService) getSkillForModeration(ctx context.Context, slug string) (*models.Skill, error) {
	skill, err := s.db.GetSkillBySlug(ctx, nil, slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, E(KindNotFound, "skill %q not found", slug)
		}
		return nil, fmt.Errorf("failed to load skill: %w", err)
	}
	return skill, nil
}

func (s *registryService) audit(ctx context.Context, tx pgx.Tx, actor *models.User, action, targetType, targetID string, metadata map[string]any) error {
	var raw json.RawMessage
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		raw = b
	}
	return s.db.AppendAudit(ctx, tx, &models.AuditLog{
		ID:          uuid.NewString(),
		ActorUserID: actor.ID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    raw,
		CreatedAt:   time.Now().UTC(),
	})
}

func requireActor(actor *models.User) error {
	if actor == nil {
		return E(KindUnauthorized, "authentication required")
	}
	return nil
}

// UpdateTags applies tag moves: a non-empty value points the tag at a
// version id, an empty value removes the tag. Repointing "latest" also
// moves latestVersionId and re-flags the embedding rows.
func (s *registryService) UpdateTags(ctx context.Context, actor *models.User, slug string, updates map[string]string) (*models.Skill, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, E(KindValidation, "no tag updates supplied")
	}

	skill, err := s.getSkillForModeration(ctx, slug)
	if err != nil {
		return nil, err
	}
	if skill.OwnerUserID != actor.ID && !actor.IsModerator() {
		return nil, E(KindForbidden, "only the owner or a moderator may edit tags")
	}

	tags := map[string]string{}
	for k, v := range skill.Tags {
		tags[k] = v
	}
	for name, versionID := range updates {
		if name == "" {
			return nil, E(KindValidation, "tag name must not be empty")
		}
		if versionID == "" {
			if name == models.TagLatest {
				return nil, E(KindValidation, "the %q tag cannot be removed", models.TagLatest)
			}
			delete(tags, name)
			continue
		}
		v, err := s.db.GetVersion(ctx, nil, versionID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, E(KindValidation, "version %q does not exist", versionID)
			}
			return nil, fmt.Errorf("failed to load version: %w", err)
		}
		if v.SkillID != skill.ID {
			return nil, E(KindValidation, "version %q belongs to another skill", versionID)
		}
		if v.SoftDeletedAt != nil {
			return nil, E(KindValidation, "version %q was deleted", versionID)
		}
		tags[name] = versionID
	}

	newLatest := tags[models.TagLatest]
	repointed := newLatest != "" && newLatest != skill.LatestVersionID

	updated, err := database.InTransactionT(ctx, s.db, func(ctx context.Context, tx pgx.Tx) (*models.Skill, error) {
		patch := &database.SkillPatch{Tags: tags}
		if repointed {
			patch.LatestVersionID = &newLatest
		}
		updated, err := s.db.PatchSkill(ctx, tx, skill.ID, patch)
		if err != nil {
			return nil, fmt.Errorf("failed to update tags: %w", err)
		}

		if repointed {
			if err := s.reflagLatestEmbedding(ctx, tx, skill.ID, newLatest); err != nil {
				return nil, err
			}
		}

		if err := s.audit(ctx, tx, actor, "skill.tags.update", "skill", skill.ID, map[string]any{
			"slug":    slug,
			"updates": updates,
		}); err != nil {
			return nil, fmt.Errorf("failed to record audit entry: %w", err)
		}
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reflagLatestEmbedding marks the embedding of versionID as latest and
// demotes the rest, recomputing visibility for each.
func (s *registryService) reflagLatestEmbedding(ctx context.Context, tx pgx.Tx, skillID, versionID string) error {
	embs, err := s.db.ListEmbeddingsBySkill(ctx, tx, skillID)
	if err != nil {
		return fmt.Errorf("failed to list embeddings: %w", err)
	}
	for _, e := range embs {
		isLatest := e.VersionID == versionID
		if e.IsLatest == isLatest {
			continue
		}
		vis := models.ComputeVisibility(isLatest, e.IsApproved, e.Visibility == models.VisibilityDeleted)
		if err := s.db.PatchEmbedding(ctx, tx, e.ID, &isLatest, nil, &vis); err != nil {
			return fmt.Errorf("failed to re-flag embedding: %w", err)
		}
	}
	return nil
}

// SetDuplicate marks the skill a duplicate of canonicalSlug, or clears the
// duplicate marker when canonicalSlug is empty.
func (s *registryService) SetDuplicate(ctx context.Context, actor *models.User, slug, canonicalSlug string) (*models.Skill, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsModerator() {
		return nil, E(KindForbidden, "moderator role required")
	}

	skill, err := s.getSkillForModeration(ctx, slug)
	if err != nil {
		return nil, err
	}

	if canonicalSlug == "" {
		updated, err := database.InTransactionT(ctx, s.db, func(ctx context.Context, tx pgx.Tx) (*models.Skill, error) {
			updated, err := s.db.PatchSkill(ctx, tx, skill.ID, &database.SkillPatch{
				ClearCanonical: true,
				ClearForkOf:    true,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to clear duplicate marker: %w", err)
			}
			if err := s.audit(ctx, tx, actor, "skill.duplicate.clear", "skill", skill.ID, map[string]any{
				"slug": slug,
			}); err != nil {
				return nil, fmt.Errorf("failed to record audit entry: %w", err)
			}
			return updated, nil
		})
		return updated, err
	}

	if canonicalSlug == slug {
		return nil, E(KindValidation, "a skill cannot be its own canonical")
	}
	upstream, err := s.db.GetSkillBySlug(ctx, nil, canonicalSlug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, E(KindValidation, "canonical skill %q does not exist", canonicalSlug)
		}
		return nil, fmt.Errorf("failed to load canonical skill: %w", err)
	}
	if upstream.ID == skill.ID {
		return nil, E(KindValidation, "a skill cannot be its own canonical")
	}

	canonical := upstream.CanonicalSkillID
	if canonical == "" {
		canonical = upstream.ID
	}
	upstreamVersion := ""
	if upstream.LatestVersionID != "" {
		if v, err := s.db.GetVersion(ctx, nil, upstream.LatestVersionID); err == nil {
			upstreamVersion = v.Version
		}
	}

	updated, err := database.InTransactionT(ctx, s.db, func(ctx context.Context, tx pgx.Tx) (*models.Skill, error) {
		updated, err := s.db.PatchSkill(ctx, tx, skill.ID, &database.SkillPatch{
			CanonicalSkillID: &canonical,
			ForkOf: &models.ForkRef{
				SkillID: upstream.ID,
				Kind:    models.ForkKindDuplicate,
				Version: upstreamVersion,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set duplicate marker: %w", err)
		}
		if err := s.audit(ctx, tx, actor, "skill.duplicate.set", "skill", skill.ID, map[string]any{
			"slug":      slug,
			"canonical": canonicalSlug,
		}); err != nil {
			return nil, fmt.Errorf("failed to record audit entry: %w", err)
		}
		return updated, nil
	})
	return updated, err
}

// ChangeOwner transfers a skill to another user, keeping the denormalized
// owner on the embedding rows aligned.
func (s *registryService) ChangeOwner(ctx context.Context, actor *models.User, slug, newOwnerUserID string) (*models.Skill, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, E(KindForbidden, "admin role required")
	}

	skill, err := s.getSkillForModeration(ctx, slug)
	if err != nil {
		return nil, err
	}
	newOwner, err := s.db.GetUser(ctx, nil, newOwnerUserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, E(KindValidation, "user %q does not exist", newOwnerUserID)
		}
		return nil, fmt.Errorf("failed to load new owner: %w", err)
	}

	updated, err := database.InTransactionT(ctx, s.db, func(ctx context.Context, tx pgx.Tx) (*models.Skill, error) {
		updated, err := s.db.PatchSkill(ctx, tx, skill.ID, &database.SkillPatch{OwnerUserID: &newOwner.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to transfer skill: %w", err)
		}
		if err := s.db.SetEmbeddingsOwner(ctx, tx, skill.ID, newOwner.ID); err != nil {
			return nil, err
		}
		if err := s.audit(ctx, tx, actor, "skill.owner.change", "skill", skill.ID, map[string]any{
			"slug": slug,
			"from": skill.OwnerUserID,
			"to":   newOwner.ID,
		}); err != nil {
			return nil, fmt.Errorf("failed to record audit entry: %w", err)
		}
		return updated, nil
	})
	return updated, err
}

// SetSoftDeleted hides or restores a skill. Deleting forces every embedding
// to the deleted visibility; restoring recomputes each from its flags.
func (s *registryService) SetSoftDeleted(ctx context.Context, actor *models.User, slug string, deleted bool) error {
	if err := requireActor(actor); err != nil {
		return err
	}

	skill, err := s.getSkillForModeration(ctx, slug)
	if err != nil {
		return err
	}
	if skill.OwnerUserID != actor.ID && !actor.IsModerator() {
		return E(KindForbidden, "only the owner or a moderator may delete this skill")
	}

	return s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := s.db.PatchSkill(ctx, tx, skill.ID, &database.SkillPatch{SetSoftDeleted: &deleted}); err != nil {
			return fmt.Errorf("failed to update skill: %w", err)
		}

		embs, err := s.db.ListEmbeddingsBySkill(ctx, tx, skill.ID)
		if err != nil {
			return fmt.Errorf("failed to list embeddings: %w", err)
		}
		for _, e := range embs {
			vis := models.ComputeVisibility(e.IsLatest, e.IsApproved, deleted)
			if err := s.db.PatchEmbedding(ctx, tx, e.ID, nil, nil, &vis); err != nil {
				return fmt.Errorf("failed to update embedding visibility: %w", err)
			}
		}

		action := "skill.softDelete"
		if !deleted {
			action = "skill.restore"
		}
		if err := s.audit(ctx, tx, actor, action, "skill", skill.ID, map[string]any{"slug": slug}); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}
		return nil
	})
}

// HardDelete removes the skill row with every dependent record, then
// deletes the orphaned blobs best-effort.
func (s *registryService) HardDelete(ctx context.Context, actor *models.User, slug string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return E(KindForbidden, "admin role required")
	}

	skill, err := s.getSkillForModeration(ctx, slug)
	if err != nil {
		return err
	}

	var storageIDs []string
	cursor := ""
	for {
		versions, next, err := s.db.ListVersions(ctx, nil, skill.ID, cursor, 100)
		if err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}
		for _, v := range versions {
			for _, f := range v.Files {
				storageIDs = append(storageIDs, f.StorageID)
			}
		}
		if next == "" || len(versions) == 0 {
			break
		}
		cursor = next
	}

	err = s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.HardDeleteSkill(ctx, tx, skill.ID); err != nil {
			return fmt.Errorf("failed to delete skill: %w", err)
		}
		if err := s.audit(ctx, tx, actor, "skill.hardDelete", "skill", skill.ID, map[string]any{"slug": slug}); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range storageIDs {
		if err := s.store.Delete(ctx, id); err != nil {
			log.Printf("failed to delete blob %s for %s: %v", id, slug, err)
		}
	}
	return nil
}

// SetBadge toggles a moderation badge. Toggling redactionApproved also
// recomputes the approved flag and visibility on every embedding.
func (s *registryService) SetBadge(ctx context.Context, actor *models.User, slug string, kind models.BadgeKind, on bool) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	switch kind {
	case models.BadgeHighlighted:
		if !actor.IsModerator() {
			return E(KindForbidden, "moderator role required")
		}
	case models.BadgeOfficial, models.BadgeDeprecated, models.BadgeRedactionApproved:
		if !actor.IsAdmin() {
			return E(KindForbidden, "admin role required")
		}
	default:
		return E(KindValidation, "unknown badge kind %q", kind)
	}

	skill, err := s.getSkillForModeration(ctx, slug)
	if err != nil {
		return err
	}

	return s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if on {
			if err := s.db.UpsertBadge(ctx, tx, &models.SkillBadge{
				SkillID:  skill.ID,
				Kind:     kind,
				ByUserID: actor.ID,
				At:       time.Now().UTC(),
			}); err != nil {
				return fmt.Errorf("failed to set badge: %w", err)
			}
		} else {
			if err := s.db.DeleteBadge(ctx, tx, skill.ID, kind); err != nil && !errors.Is(err, database.ErrNotFound) {
				return fmt.Errorf("failed to remove badge: %w", err)
			}
		}

		if kind == models.BadgeRedactionApproved {
			embs, err := s.db.ListEmbeddingsBySkill(ctx, tx, skill.ID)
			if err != nil {
				return fmt.Errorf("failed to list embeddings: %w", err)
			}
			for _, e := range embs {
				approved := on
				vis := models.ComputeVisibility(e.IsLatest, approved, skill.SoftDeletedAt != nil)
				if err := s.db.PatchEmbedding(ctx, tx, e.ID, nil, &approved, &vis); err != nil {
					return fmt.Errorf("failed to update embedding approval: %w", err)
				}
			}
		}

		action := "skill.badge.set"
		if !on {
			action = "skill.badge.clear"
		}
		if err := s.audit(ctx, tx, actor, action, "skill", skill.ID, map[string]any{
			"slug": slug,
			"kind": string(kind),
		}); err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}
		return nil
	})
}
