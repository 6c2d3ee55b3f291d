package models

import (
	"encoding/json"
	"time"
)

// TagLatest is the distinguished tag that always tracks the newest version.
const TagLatest = "latest"

// ModerationStatus gates whether a skill appears in public listings.
type ModerationStatus string

const (
	ModerationActive ModerationStatus = "active"
	ModerationHidden ModerationStatus = "hidden"
)

// ForkKind distinguishes an explicit fork from a fingerprint-detected duplicate.
type ForkKind string

const (
	ForkKindFork      ForkKind = "fork"
	ForkKindDuplicate ForkKind = "duplicate"
)

// ForkRef records the upstream a skill was forked or duplicated from.
type ForkRef struct {
	SkillID string   `json:"skillId"`
	Kind    ForkKind `json:"kind"`
	Version string   `json:"version,omitempty"`
}

// SkillStats carries the denormalized counters shown on skill pages.
type SkillStats struct {
	Downloads       int64 `json:"downloads"`
	Stars           int64 `json:"stars"`
	Versions        int64 `json:"versions"`
	Comments        int64 `json:"comments"`
	InstallsCurrent int64 `json:"installsCurrent"`
	InstallsAllTime int64 `json:"installsAllTime"`
}

// Skill is a named, versioned bundle of text files. The slug is globally
// unique across all skills, including soft-deleted ones.
type Skill struct {
	ID               string            `json:"id"`
	Slug             string            `json:"slug"`
	DisplayName      string            `json:"displayName"`
	Summary          string            `json:"summary,omitempty"`
	OwnerUserID      string            `json:"ownerUserId"`
	LatestVersionID  string            `json:"latestVersionId,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	CanonicalSkillID string            `json:"canonicalSkillId,omitempty"`
	ForkOf           *ForkRef          `json:"forkOf,omitempty"`
	ModerationStatus ModerationStatus  `json:"moderationStatus"`
	SoftDeletedAt    *time.Time        `json:"softDeletedAt,omitempty"`
	ReportCount      int               `json:"reportCount"`
	Stats            SkillStats        `json:"stats"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Visible reports whether the skill participates in public reads.
func (s *Skill) Visible() bool {
	return s.SoftDeletedAt == nil && s.ModerationStatus == ModerationActive
}

// ChangelogSource records whether a changelog was supplied by the publisher
// or generated by the summarizer.
type ChangelogSource string

const (
	ChangelogSourceUser ChangelogSource = "user"
	ChangelogSourceAuto ChangelogSource = "auto"
)

// VersionFile describes one stored file of a published version. SHA256 is
// the lowercase hex digest of the stored bytes.
type VersionFile struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	StorageID   string `json:"storageId"`
	ContentType string `json:"contentType,omitempty"`
}

// ParsedBundle is the validated projection of the SKILL.md frontmatter.
// Metadata keeps the raw JSON blob so free-form publisher data survives
// round trips; typed views are derived from it defensively.
type ParsedBundle struct {
	Frontmatter map[string]any  `json:"frontmatter,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// SkillVersion is an immutable published version. Files and the version
// string never change after commit; only SoftDeletedAt toggles.
type SkillVersion struct {
	ID              string          `json:"id"`
	SkillID         string          `json:"skillId"`
	Version         string          `json:"version"`
	Changelog       string          `json:"changelog,omitempty"`
	ChangelogSource ChangelogSource `json:"changelogSource,omitempty"`
	Files           []VersionFile   `json:"files"`
	Fingerprint     string          `json:"fingerprint"`
	Parsed          ParsedBundle    `json:"parsed,omitempty"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
	SoftDeletedAt   *time.Time      `json:"softDeletedAt,omitempty"`
}

// TotalSize returns the declared byte size of the bundle.
func (v *SkillVersion) TotalSize() int64 {
	var total int64
	for _, f := range v.Files {
		total += f.Size
	}
	return total
}

// FindFile returns the file with the given path, or nil.
func (v *SkillVersion) FindFile(path string) *VersionFile {
	for i := range v.Files {
		if v.Files[i].Path == path {
			return &v.Files[i]
		}
	}
	return nil
}

// VersionFingerprint maps a bundle fingerprint back to the version that
// produced it; also serves cross-skill duplicate detection.
type VersionFingerprint struct {
	SkillID     string    `json:"skillId"`
	VersionID   string    `json:"versionId"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
}
