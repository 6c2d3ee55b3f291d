package models

import "time"

// Visibility is the embedding-level state that decides whether a version
// participates in search. Exactly one embedding per skill is latest.
type Visibility string

const (
	VisibilityLatest           Visibility = "latest"
	VisibilityLatestApproved   Visibility = "latest-approved"
	VisibilityArchived         Visibility = "archived"
	VisibilityArchivedApproved Visibility = "archived-approved"
	VisibilityDeleted          Visibility = "deleted"
)

// SearchableVisibilities are the states that vector search candidates must
// be in; everything else is filtered out at the index.
var SearchableVisibilities = []Visibility{VisibilityLatest, VisibilityLatestApproved}

// ComputeVisibility maps the (isLatest, isApproved, softDeleted) triple to
// its visibility state.
func ComputeVisibility(isLatest, isApproved, softDeleted bool) Visibility {
	if softDeleted {
		return VisibilityDeleted
	}
	switch {
	case isLatest && isApproved:
		return VisibilityLatestApproved
	case isLatest:
		return VisibilityLatest
	case isApproved:
		return VisibilityArchivedApproved
	default:
		return VisibilityArchived
	}
}

// SkillEmbedding stores the semantic vector for one published version.
// Checksum is the SHA-256 of the embedding payload text, kept so unchanged
// payloads can skip the provider on re-index.
type SkillEmbedding struct {
	ID         string     `json:"id"`
	SkillID    string     `json:"skillId"`
	VersionID  string     `json:"versionId"`
	OwnerID    string     `json:"ownerId"`
	Vector     []float32  `json:"-"`
	IsLatest   bool       `json:"isLatest"`
	IsApproved bool       `json:"isApproved"`
	Visibility Visibility `json:"visibility"`
	Checksum   string     `json:"checksum,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
