package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

const maxCommentLength = 4000

// Star records a favorite. Re-starring is a no-op and never double-counts.
func (s *registryService) Star(ctx context.Context, userID, slug string) error {
	if userID == "" {
		return E(KindUnauthorized, "authentication required")
	}
	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return err
	}

	return s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		changed, err := s.db.AddStar(ctx, tx, userID, skill.ID)
		if err != nil {
			return fmt.Errorf("failed to add star: %w", err)
		}
		if !changed {
			return nil
		}
		if err := s.db.BumpSkillStats(ctx, tx, skill.ID, database.StatsDelta{Stars: 1}); err != nil {
			return fmt.Errorf("failed to bump star count: %w", err)
		}
		return nil
	})
}

// Unstar removes a favorite. Removing an absent star is a no-op.
func (s *registryService) Unstar(ctx context.Context, userID, slug string) error {
	if userID == "" {
		return E(KindUnauthorized, "authentication required")
	}
	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return err
	}

	return s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		changed, err := s.db.RemoveStar(ctx, tx, userID, skill.ID)
		if err != nil {
			return fmt.Errorf("failed to remove star: %w", err)
		}
		if !changed {
			return nil
		}
		if err := s.db.BumpSkillStats(ctx, tx, skill.ID, database.StatsDelta{Stars: -1}); err != nil {
			return fmt.Errorf("failed to bump star count: %w", err)
		}
		return nil
	})
}

func (s *registryService) AddComment(ctx context.Context, userID, slug, body string) (*models.Comment, error) {
	if userID == "" {
		return nil, E(KindUnauthorized, "authentication required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, E(KindValidation, "comment body must not be empty")
	}
	if len(body) > maxCommentLength {
		return nil, E(KindValidation, "comment exceeds %d characters", maxCommentLength)
	}

	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:        uuid.NewString(),
		SkillID:   skill.ID,
		UserID:    userID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	err = s.db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.CreateComment(ctx, tx, comment); err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
		if err := s.db.BumpSkillStats(ctx, tx, skill.ID, database.StatsDelta{Comments: 1}); err != nil {
			return fmt.Errorf("failed to bump comment count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *registryService) ListComments(ctx context.Context, slug string, limit int) ([]*models.Comment, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	skill, err := s.getVisibleSkill(ctx, slug)
	if err != nil {
		return nil, err
	}
	comments, err := s.db.ListComments(ctx, nil, skill.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
