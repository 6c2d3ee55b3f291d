package service

import (
	"context"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/changelog"
	"github.com/clawdhub/clawdhub/internal/registry/config"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/embeddings"
	"github.com/clawdhub/clawdhub/internal/registry/storage"
)

// RegistryService defines the interface for registry operations
type RegistryService interface {
	// Publish validates and commits a new skill version. Inline carries
	// multipart file bytes keyed by path; nil for the JSON flow where
	// blobs were uploaded ahead of time.
	Publish(ctx context.Context, userID string, req *models.PublishRequest, inline map[string][]byte) (*models.PublishResponse, error)
	// Resolve maps a (slug, fingerprint) pair to a known version.
	Resolve(ctx context.Context, slug, hash string) (*models.ResolveResponse, error)
	// Search runs the hybrid vector plus exact-token search.
	Search(ctx context.Context, query string, limit int, highlightedOnly bool) ([]models.SearchResult, error)
	// GetSkill retrieves a skill with its latest version and owner.
	GetSkill(ctx context.Context, slug string) (*models.SkillDetail, error)
	// ListSkills pages over public skills; only SortUpdated honours cursors.
	ListSkills(ctx context.Context, sort database.SkillSort, cursor string, limit int) (*models.SkillPage, error)
	// ListVersions pages over a skill's versions, newest first.
	ListVersions(ctx context.Context, slug, cursor string, limit int) (*models.VersionPage, error)
	// GetVersion retrieves one version with its file manifest.
	GetVersion(ctx context.Context, slug, version string) (*models.SkillVersion, error)
	// GetFile reads one raw file of a version or tag.
	GetFile(ctx context.Context, slug, path, version, tag string) (*FileContent, error)
	// DownloadZip builds a zip of a version's files and counts the download.
	DownloadZip(ctx context.Context, slug, version string) ([]byte, string, error)

	// UpdateTags moves tags; moving "latest" also repoints latestVersionId.
	UpdateTags(ctx context.Context, actor *models.User, slug string, updates map[string]string) (*models.Skill, error)
	// SetDuplicate marks or clears duplicate lineage. Moderator only.
	SetDuplicate(ctx context.Context, actor *models.User, slug, canonicalSlug string) (*models.Skill, error)
	// ChangeOwner transfers a skill. Admin only.
	ChangeOwner(ctx context.Context, actor *models.User, slug, newOwnerUserID string) (*models.Skill, error)
	// SetSoftDeleted hides or restores a skill. Owner or moderator.
	SetSoftDeleted(ctx context.Context, actor *models.User, slug string, deleted bool) error
	// HardDelete removes a skill and every dependent row. Admin only.
	HardDelete(ctx context.Context, actor *models.User, slug string) error
	// SetBadge toggles a moderation badge.
	SetBadge(ctx context.Context, actor *models.User, slug string, kind models.BadgeKind, on bool) error

	// Star and Unstar toggle a favorite and keep stats.stars aligned.
	Star(ctx context.Context, userID, slug string) error
	Unstar(ctx context.Context, userID, slug string) error
	// AddComment appends a comment and bumps stats.comments.
	AddComment(ctx context.Context, userID, slug, body string) (*models.Comment, error)
	// ListComments lists live comments, newest first.
	ListComments(ctx context.Context, slug string, limit int) ([]*models.Comment, error)
}

// FileContent is one raw file read.
type FileContent struct {
	Path        string
	Content     []byte
	SHA256      string
	ContentType string
	Archived    bool
}

// registryService implements RegistryService on top of the database,
// blob store, and external providers.
type registryService struct {
	db         database.Database
	store      storage.Store
	provider   embeddings.Provider
	summarizer changelog.Summarizer
	dispatcher *Dispatcher
	cfg        *config.Config
}

// NewRegistryService creates a registry service. provider may be nil when
// embeddings are disabled; publishes then skip the vector and search
// returns empty results.
func NewRegistryService(db database.Database, store storage.Store, provider embeddings.Provider, summarizer changelog.Summarizer, dispatcher *Dispatcher, cfg *config.Config) RegistryService {
	if summarizer == nil {
		summarizer = changelog.Static{}
	}
	return &registryService{
		db:         db,
		store:      store,
		provider:   provider,
		summarizer: summarizer,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}
