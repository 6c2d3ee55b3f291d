package models

import (
	"encoding/json"
	"time"
)

// Star is a (user, skill) favorite; inserts and deletes drive stats.Stars.
type Star struct {
	UserID    string    `json:"userId"`
	SkillID   string    `json:"skillId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is append-only with soft delete.
type Comment struct {
	ID            string     `json:"id"`
	SkillID       string     `json:"skillId"`
	UserID        string     `json:"userId"`
	Body          string     `json:"body"`
	CreatedAt     time.Time  `json:"createdAt"`
	SoftDeletedAt *time.Time `json:"softDeletedAt,omitempty"`
}

// BadgeKind enumerates the moderation badges a skill can carry.
type BadgeKind string

const (
	BadgeHighlighted       BadgeKind = "highlighted"
	BadgeOfficial          BadgeKind = "official"
	BadgeDeprecated        BadgeKind = "deprecated"
	BadgeRedactionApproved BadgeKind = "redactionApproved"
)

// SkillBadge is an upsertable (skill, kind) marker set by moderators/admins.
type SkillBadge struct {
	SkillID  string    `json:"skillId"`
	Kind     BadgeKind `json:"kind"`
	ByUserID string    `json:"byUserId"`
	At       time.Time `json:"at"`
}

// AuditLog records one privileged mutation.
type AuditLog struct {
	ID          string          `json:"id"`
	ActorUserID string          `json:"actorUserId"`
	Action      string          `json:"action"`
	TargetType  string          `json:"targetType"`
	TargetID    string          `json:"targetId"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}
