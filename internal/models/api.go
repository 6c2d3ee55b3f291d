package models

import "time"

// PublishFile is the client-declared manifest entry for one bundle file.
// StorageID is set when the bytes were uploaded ahead of time; multipart
// publishes leave it empty and the server fills it in after storing.
type PublishFile struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	StorageID   string `json:"storageId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// PublishForkOf names the upstream a publish declares itself a fork of.
type PublishForkOf struct {
	Slug    string `json:"slug"`
	Version string `json:"version,omitempty"`
}

// PublishRequest is the body of POST /api/v1/skills.
type PublishRequest struct {
	Slug        string            `json:"slug"`
	DisplayName string            `json:"displayName"`
	Version     string            `json:"version"`
	Changelog   string            `json:"changelog,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	ForkOf      *PublishForkOf    `json:"forkOf,omitempty"`
	Source      string            `json:"source,omitempty"`
	Files       []PublishFile     `json:"files,omitempty"`
}

// PublishResponse reports the committed identifiers of a publish.
type PublishResponse struct {
	SkillID     string `json:"skillId"`
	VersionID   string `json:"versionId"`
	Version     string `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

// VersionRef is the minimal projection of a version used by the resolver.
type VersionRef struct {
	ID      string `json:"id,omitempty"`
	Version string `json:"version"`
}

// ResolveResponse answers GET /api/v1/skill/resolve.
type ResolveResponse struct {
	Match         *VersionRef `json:"match"`
	LatestVersion *VersionRef `json:"latestVersion"`
}

// SkillDetail is the composite returned by GET /api/v1/skills/{slug}.
type SkillDetail struct {
	Skill         *Skill        `json:"skill"`
	LatestVersion *SkillVersion `json:"latestVersion,omitempty"`
	Owner         *UserRef      `json:"owner,omitempty"`
	Badges        []SkillBadge  `json:"badges,omitempty"`
}

// SearchResult is one hit of the hybrid search, ordered by vector rank.
type SearchResult struct {
	Score       float64   `json:"score"`
	Slug        string    `json:"slug"`
	DisplayName string    `json:"displayName"`
	Summary     string    `json:"summary,omitempty"`
	Version     string    `json:"version,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SkillPage is a cursor-paginated slice of skills.
type SkillPage struct {
	Skills     []*Skill `json:"skills"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// VersionPage is a cursor-paginated slice of versions.
type VersionPage struct {
	Versions   []*SkillVersion `json:"versions"`
	NextCursor string          `json:"nextCursor,omitempty"`
}
