package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/clawdhub/clawdhub/internal/models"
)

// Common database errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabase      = errors.New("database error")
	ErrVersionExists = errors.New("version already exists for this skill")
)

// SkillSort enumerates the supported orderings of the public skill list.
type SkillSort string

const (
	SortUpdated         SkillSort = "updated"
	SortDownloads       SkillSort = "downloads"
	SortStars           SkillSort = "stars"
	SortInstallsCurrent SkillSort = "installsCurrent"
	SortInstallsAllTime SkillSort = "installsAllTime"
	SortTrending        SkillSort = "trending"
)

// SkillFilter defines filtering options for skill queries
type SkillFilter struct {
	OwnerUserID    *string   // restrict to one owner
	Slug           *string   // exact slug match
	IncludeDeleted bool      // include soft-deleted skills (moderation views)
	IncludeHidden  bool      // include moderation-hidden skills
	Sort           SkillSort // ordering; only SortUpdated honours cursors
}

// StatsDelta carries counter increments applied atomically to a skill.
// Zero fields are left untouched; negative values decrement.
type StatsDelta struct {
	Downloads       int64
	Stars           int64
	Versions        int64
	Comments        int64
	InstallsCurrent int64
	InstallsAllTime int64
}

// EmbeddingHit is one vector search candidate with its distance score.
type EmbeddingHit struct {
	Embedding *models.SkillEmbedding
	Score     float64
}

// SkillPatch names the mutable fields of a skill row. Nil pointers are
// left untouched.
type SkillPatch struct {
	DisplayName      *string
	Summary          *string
	LatestVersionID  *string
	Tags             map[string]string
	CanonicalSkillID *string
	ClearCanonical   bool
	ForkOf           *models.ForkRef
	ClearForkOf      bool
	OwnerUserID      *string
	ModerationStatus *models.ModerationStatus
	SetSoftDeleted   *bool
	ReportCount      *int
}

// Database defines the interface for registry persistence. Every method
// accepts an optional pgx.Tx; nil executes against the pool.
type Database interface {
	// Users and tokens
	CreateUser(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetUser(ctx context.Context, tx pgx.Tx, id string) (*models.User, error)
	GetUserByHandle(ctx context.Context, tx pgx.Tx, handle string) (*models.User, error)
	CreateToken(ctx context.Context, tx pgx.Tx, token *models.APIToken) error
	GetTokenByHash(ctx context.Context, tx pgx.Tx, hash string) (*models.APIToken, error)
	RevokeToken(ctx context.Context, tx pgx.Tx, hash string) error

	// Skills
	CreateSkill(ctx context.Context, tx pgx.Tx, skill *models.Skill) error
	GetSkillByID(ctx context.Context, tx pgx.Tx, id string) (*models.Skill, error)
	GetSkillBySlug(ctx context.Context, tx pgx.Tx, slug string) (*models.Skill, error)
	ListSkills(ctx context.Context, tx pgx.Tx, filter *SkillFilter, cursor string, limit int) ([]*models.Skill, string, error)
	PatchSkill(ctx context.Context, tx pgx.Tx, id string, patch *SkillPatch) (*models.Skill, error)
	BumpSkillStats(ctx context.Context, tx pgx.Tx, id string, delta StatsDelta) error
	HardDeleteSkill(ctx context.Context, tx pgx.Tx, id string) error

	// Versions
	CreateVersion(ctx context.Context, tx pgx.Tx, version *models.SkillVersion) error
	GetVersion(ctx context.Context, tx pgx.Tx, id string) (*models.SkillVersion, error)
	GetVersionBySkillAndVersion(ctx context.Context, tx pgx.Tx, skillID, version string) (*models.SkillVersion, error)
	ListVersions(ctx context.Context, tx pgx.Tx, skillID string, cursor string, limit int) ([]*models.SkillVersion, string, error)
	SetVersionSoftDeleted(ctx context.Context, tx pgx.Tx, id string, deleted bool) error

	// Fingerprints
	CreateFingerprint(ctx context.Context, tx pgx.Tx, fp *models.VersionFingerprint) error
	ListFingerprints(ctx context.Context, tx pgx.Tx, skillID, fingerprint string, limit int) ([]*models.VersionFingerprint, error)
	FindSkillIDByFingerprint(ctx context.Context, tx pgx.Tx, fingerprint string, excludeSkillID string) (string, error)

	// Embeddings
	InsertEmbedding(ctx context.Context, tx pgx.Tx, emb *models.SkillEmbedding) error
	GetLatestEmbedding(ctx context.Context, tx pgx.Tx, skillID string) (*models.SkillEmbedding, error)
	ListEmbeddingsBySkill(ctx context.Context, tx pgx.Tx, skillID string) ([]*models.SkillEmbedding, error)
	PatchEmbedding(ctx context.Context, tx pgx.Tx, id string, isLatest, isApproved *bool, visibility *models.Visibility) error
	SetEmbeddingsOwner(ctx context.Context, tx pgx.Tx, skillID, ownerUserID string) error
	VectorSearch(ctx context.Context, tx pgx.Tx, vector []float32, limit int, visibilities []models.Visibility) ([]EmbeddingHit, error)

	// Stars
	AddStar(ctx context.Context, tx pgx.Tx, userID, skillID string) (bool, error)
	RemoveStar(ctx context.Context, tx pgx.Tx, userID, skillID string) (bool, error)

	// Comments
	CreateComment(ctx context.Context, tx pgx.Tx, comment *models.Comment) error
	ListComments(ctx context.Context, tx pgx.Tx, skillID string, limit int) ([]*models.Comment, error)
	SoftDeleteComment(ctx context.Context, tx pgx.Tx, id string) error

	// Badges
	UpsertBadge(ctx context.Context, tx pgx.Tx, badge *models.SkillBadge) error
	DeleteBadge(ctx context.Context, tx pgx.Tx, skillID string, kind models.BadgeKind) error
	ListBadges(ctx context.Context, tx pgx.Tx, skillID string) ([]*models.SkillBadge, error)

	// Audit
	AppendAudit(ctx context.Context, tx pgx.Tx, entry *models.AuditLog) error

	// InTransaction executes a function within a database transaction
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
	// Close closes the database connection
	Close() error
}

// InTransactionT is a generic helper that wraps InTransaction for functions returning a value
// This exists because Go does not support generic methods on interfaces - only the Database interface
// method InTransaction (without generics) can exist, so we provide this generic wrapper function.
func InTransactionT[T any](ctx context.Context, db Database, fn func(ctx context.Context, tx pgx.Tx) (T, error)) (T, error) {
	var result T
	var fnErr error

	err := db.InTransaction(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		result, fnErr = fn(txCtx, tx)
		return fnErr
	})

	if err != nil {
		var zero T
		return zero, err
	}

	return result, nil
}
