package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/clawdhub/clawdhub/internal/models"
)

// PostgreSQL is an implementation of the Database interface using PostgreSQL
type PostgreSQL struct {
	pool *pgxpool.Pool
}

// Executor is an interface for executing queries (satisfied by both pgx.Tx and pgxpool.Pool)
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getExecutor returns the appropriate executor (transaction or pool)
func (db *PostgreSQL) getExecutor(tx pgx.Tx) Executor {
	if tx != nil {
		return tx
	}
	return db.pool
}

// NewPostgreSQL creates a new instance of the PostgreSQL database
func NewPostgreSQL(ctx context.Context, connectionURI string) (*PostgreSQL, error) {
	config, err := pgxpool.ParseConfig(connectionURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	config.MaxConns = 30
	config.MinConns = 5
	config.MaxConnIdleTime = 30 * time.Minute
	config.MaxConnLifetime = 2 * time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for migrations: %w", err)
	}
	defer conn.Release()

	if err := migrate(ctx, conn.Conn()); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	return &PostgreSQL{pool: pool}, nil
}

// Close closes the database connection
func (db *PostgreSQL) Close() error {
	db.pool.Close()
	return nil
}

// InTransaction executes a function within a database transaction
func (db *PostgreSQL) InTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		rollbackCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if rbErr := tx.Rollback(rollbackCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Printf("failed to rollback transaction: %v", rbErr)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users and tokens ---

func (db *PostgreSQL) CreateUser(ctx context.Context, tx pgx.Tx, user *models.User) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `
		INSERT INTO users (id, handle, display_name, image, role, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	`
	_, err := db.getExecutor(tx).Exec(ctx, query,
		user.ID, user.Handle, user.DisplayName, user.Image, string(user.Role), user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var handle *string
	var role string
	err := row.Scan(&u.ID, &handle, &u.DisplayName, &u.Image, &role, &u.CreatedAt, &u.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	if handle != nil {
		u.Handle = *handle
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (db *PostgreSQL) GetUser(ctx context.Context, tx pgx.Tx, id string) (*models.User, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT id, handle, display_name, image, role, created_at, deleted_at
		FROM users
		WHERE id = $1
	`
	return scanUser(db.getExecutor(tx).QueryRow(ctx, query, id))
}

func (db *PostgreSQL) GetUserByHandle(ctx context.Context, tx pgx.Tx, handle string) (*models.User, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT id, handle, display_name, image, role, created_at, deleted_at
		FROM users
		WHERE handle = $1
	`
	return scanUser(db.getExecutor(tx).QueryRow(ctx, query, handle))
}

func (db *PostgreSQL) CreateToken(ctx context.Context, tx pgx.Tx, token *models.APIToken) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `
		INSERT INTO api_tokens (hash, user_id, label, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := db.getExecutor(tx).Exec(ctx, query, token.Hash, token.UserID, token.Label, token.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

func (db *PostgreSQL) GetTokenByHash(ctx context.Context, tx pgx.Tx, hash string) (*models.APIToken, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT hash, user_id, label, created_at, revoked_at
		FROM api_tokens
		WHERE hash = $1
	`
	var t models.APIToken
	err := db.getExecutor(tx).QueryRow(ctx, query, hash).Scan(&t.Hash, &t.UserID, &t.Label, &t.CreatedAt, &t.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &t, nil
}

func (db *PostgreSQL) RevokeToken(ctx context.Context, tx pgx.Tx, hash string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tag, err := db.getExecutor(tx).Exec(ctx, "UPDATE api_tokens SET revoked_at = now() WHERE hash = $1 AND revoked_at IS NULL", hash)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Skills ---

const skillColumns = `id, slug, display_name, summary, owner_user_id, latest_version_id,
	tags, canonical_skill_id, fork_of, moderation_status, soft_deleted_at,
	report_count, stats, created_at, updated_at`

func scanSkill(row pgx.Row) (*models.Skill, error) {
	var s models.Skill
	var latestVersionID, canonicalSkillID *string
	var tagsJSON, statsJSON []byte
	var forkOfJSON []byte
	var status string

	err := row.Scan(&s.ID, &s.Slug, &s.DisplayName, &s.Summary, &s.OwnerUserID, &latestVersionID,
		&tagsJSON, &canonicalSkillID, &forkOfJSON, &status, &s.SoftDeletedAt,
		&s.ReportCount, &statsJSON, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan skill row: %w", err)
	}

	if latestVersionID != nil {
		s.LatestVersionID = *latestVersionID
	}
	if canonicalSkillID != nil {
		s.CanonicalSkillID = *canonicalSkillID
	}
	s.ModerationStatus = models.ModerationStatus(status)
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &s.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skill tags: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &s.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skill stats: %w", err)
		}
	}
	if len(forkOfJSON) > 0 {
		var fork models.ForkRef
		if err := json.Unmarshal(forkOfJSON, &fork); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skill fork ref: %w", err)
		}
		s.ForkOf = &fork
	}
	return &s, nil
}

func (db *PostgreSQL) CreateSkill(ctx context.Context, tx pgx.Tx, skill *models.Skill) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tagsJSON, err := json.Marshal(skill.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal skill tags: %w", err)
	}
	statsJSON, err := json.Marshal(skill.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal skill stats: %w", err)
	}
	var forkOfJSON []byte
	if skill.ForkOf != nil {
		forkOfJSON, err = json.Marshal(skill.ForkOf)
		if err != nil {
			return fmt.Errorf("failed to marshal skill fork ref: %w", err)
		}
	}

	query := `
		INSERT INTO skills (id, slug, display_name, summary, owner_user_id, latest_version_id,
			tags, canonical_skill_id, fork_of, moderation_status, soft_deleted_at,
			report_count, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = db.getExecutor(tx).Exec(ctx, query,
		skill.ID, skill.Slug, skill.DisplayName, skill.Summary, skill.OwnerUserID, skill.LatestVersionID,
		tagsJSON, skill.CanonicalSkillID, forkOfJSON, string(skill.ModerationStatus), skill.SoftDeletedAt,
		skill.ReportCount, statsJSON, skill.CreatedAt, skill.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create skill: %w", err)
	}
	return nil
}

func (db *PostgreSQL) GetSkillByID(ctx context.Context, tx pgx.Tx, id string) (*models.Skill, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := "SELECT " + skillColumns + " FROM skills WHERE id = $1"
	return scanSkill(db.getExecutor(tx).QueryRow(ctx, query, id))
}

func (db *PostgreSQL) GetSkillBySlug(ctx context.Context, tx pgx.Tx, slug string) (*models.Skill, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := "SELECT " + skillColumns + " FROM skills WHERE slug = $1"
	return scanSkill(db.getExecutor(tx).QueryRow(ctx, query, slug))
}

// sortColumn maps a SkillSort to its ORDER BY expression. Trending decays
// recent downloads by age so fresh activity outranks stale totals.
func sortColumn(sort SkillSort) string {
	switch sort {
	case SortDownloads:
		return "(stats->>'downloads')::bigint DESC, id"
	case SortStars:
		return "(stats->>'stars')::bigint DESC, id"
	case SortInstallsCurrent:
		return "(stats->>'installsCurrent')::bigint DESC, id"
	case SortInstallsAllTime:
		return "(stats->>'installsAllTime')::bigint DESC, id"
	case SortTrending:
		return "(stats->>'downloads')::bigint / GREATEST(EXTRACT(EPOCH FROM now() - updated_at) / 86400, 1) DESC, id"
	default:
		return "updated_at DESC, id"
	}
}

func (db *PostgreSQL) ListSkills(ctx context.Context, tx pgx.Tx, filter *SkillFilter, cursor string, limit int) ([]*models.Skill, string, error) {
	if limit <= 0 {
		limit = 10
	}

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	var whereConditions []string
	args := []any{}
	argIndex := 1

	sort := SortUpdated
	if filter != nil {
		if filter.Sort != "" {
			sort = filter.Sort
		}
		if filter.OwnerUserID != nil {
			whereConditions = append(whereConditions, fmt.Sprintf("owner_user_id = $%d", argIndex))
			args = append(args, *filter.OwnerUserID)
			argIndex++
		}
		if filter.Slug != nil {
			whereConditions = append(whereConditions, fmt.Sprintf("slug = $%d", argIndex))
			args = append(args, *filter.Slug)
			argIndex++
		}
		if !filter.IncludeDeleted {
			whereConditions = append(whereConditions, "soft_deleted_at IS NULL")
		}
		if !filter.IncludeHidden {
			whereConditions = append(whereConditions, "moderation_status = 'active'")
		}
	} else {
		whereConditions = append(whereConditions, "soft_deleted_at IS NULL", "moderation_status = 'active'")
	}

	// Only the updated ordering honours cursors; other sorts return a
	// single bounded page.
	if cursor != "" && sort == SortUpdated {
		parts := strings.SplitN(cursor, ":", 2)
		if len(parts) == 2 {
			if ts, err := time.Parse(time.RFC3339Nano, parts[0]); err == nil {
				whereConditions = append(whereConditions, fmt.Sprintf("(updated_at < $%d OR (updated_at = $%d AND id > $%d))", argIndex, argIndex, argIndex+1))
				args = append(args, ts, parts[1])
				argIndex += 2
			}
		}
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM skills
		%s
		ORDER BY %s
		LIMIT $%d
	`, skillColumns, whereClause, sortColumn(sort), argIndex)
	args = append(args, limit)

	rows, err := db.getExecutor(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()

	var results []*models.Skill
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, "", err
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating rows: %w", err)
	}

	nextCursor := ""
	if sort == SortUpdated && len(results) >= limit && len(results) > 0 {
		last := results[len(results)-1]
		nextCursor = last.UpdatedAt.Format(time.RFC3339Nano) + ":" + last.ID
	}

	return results, nextCursor, nil
}

func (db *PostgreSQL) PatchSkill(ctx context.Context, tx pgx.Tx, id string, patch *SkillPatch) (*models.Skill, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	setClauses := []string{"updated_at = now()"}
	args := []any{}
	argIndex := 1

	addSet := func(clause string, value any) {
		setClauses = append(setClauses, fmt.Sprintf(clause, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.DisplayName != nil {
		addSet("display_name = $%d", *patch.DisplayName)
	}
	if patch.Summary != nil {
		addSet("summary = $%d", *patch.Summary)
	}
	if patch.LatestVersionID != nil {
		addSet("latest_version_id = $%d", *patch.LatestVersionID)
	}
	if patch.Tags != nil {
		tagsJSON, err := json.Marshal(patch.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal skill tags: %w", err)
		}
		addSet("tags = $%d", tagsJSON)
	}
	if patch.ClearCanonical {
		setClauses = append(setClauses, "canonical_skill_id = NULL")
	} else if patch.CanonicalSkillID != nil {
		addSet("canonical_skill_id = $%d", *patch.CanonicalSkillID)
	}
	if patch.ClearForkOf {
		setClauses = append(setClauses, "fork_of = NULL")
	} else if patch.ForkOf != nil {
		forkOfJSON, err := json.Marshal(patch.ForkOf)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal skill fork ref: %w", err)
		}
		addSet("fork_of = $%d", forkOfJSON)
	}
	if patch.OwnerUserID != nil {
		addSet("owner_user_id = $%d", *patch.OwnerUserID)
	}
	if patch.ModerationStatus != nil {
		addSet("moderation_status = $%d", string(*patch.ModerationStatus))
	}
	if patch.SetSoftDeleted != nil {
		if *patch.SetSoftDeleted {
			setClauses = append(setClauses, "soft_deleted_at = now()")
		} else {
			setClauses = append(setClauses, "soft_deleted_at = NULL")
		}
	}
	if patch.ReportCount != nil {
		addSet("report_count = $%d", *patch.ReportCount)
	}

	query := fmt.Sprintf(`
		UPDATE skills
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(setClauses, ", "), argIndex, skillColumns)
	args = append(args, id)

	return scanSkill(db.getExecutor(tx).QueryRow(ctx, query, args...))
}

func (db *PostgreSQL) BumpSkillStats(ctx context.Context, tx pgx.Tx, id string, delta StatsDelta) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// GREATEST keeps counters from going negative on decrement.
	query := `
		UPDATE skills
		SET stats = jsonb_build_object(
			'downloads', GREATEST(COALESCE((stats->>'downloads')::bigint, 0) + $2, 0),
			'stars', GREATEST(COALESCE((stats->>'stars')::bigint, 0) + $3, 0),
			'versions', GREATEST(COALESCE((stats->>'versions')::bigint, 0) + $4, 0),
			'comments', GREATEST(COALESCE((stats->>'comments')::bigint, 0) + $5, 0),
			'installsCurrent', GREATEST(COALESCE((stats->>'installsCurrent')::bigint, 0) + $6, 0),
			'installsAllTime', GREATEST(COALESCE((stats->>'installsAllTime')::bigint, 0) + $7, 0)
		)
		WHERE id = $1
	`
	tag, err := db.getExecutor(tx).Exec(ctx, query, id,
		delta.Downloads, delta.Stars, delta.Versions, delta.Comments,
		delta.InstallsCurrent, delta.InstallsAllTime)
	if err != nil {
		return fmt.Errorf("failed to bump skill stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgreSQL) HardDeleteSkill(ctx context.Context, tx pgx.Tx, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	exec := db.getExecutor(tx)

	// Clear dangling lineage references before the cascade removes the row.
	if _, err := exec.Exec(ctx, "UPDATE skills SET canonical_skill_id = NULL WHERE canonical_skill_id = $1", id); err != nil {
		return fmt.Errorf("failed to clear canonical references: %w", err)
	}
	if _, err := exec.Exec(ctx, "UPDATE skills SET fork_of = NULL WHERE fork_of->>'skillId' = $1", id); err != nil {
		return fmt.Errorf("failed to clear fork references: %w", err)
	}

	tag, err := exec.Exec(ctx, "DELETE FROM skills WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to hard delete skill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Versions ---

const versionColumns = `id, skill_id, version, changelog, changelog_source, files,
	fingerprint, parsed, created_by, created_at, soft_deleted_at`

func scanVersion(row pgx.Row) (*models.SkillVersion, error) {
	var v models.SkillVersion
	var source string
	var filesJSON, parsedJSON []byte

	err := row.Scan(&v.ID, &v.SkillID, &v.Version, &v.Changelog, &source, &filesJSON,
		&v.Fingerprint, &parsedJSON, &v.CreatedBy, &v.CreatedAt, &v.SoftDeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan version row: %w", err)
	}

	v.ChangelogSource = models.ChangelogSource(source)
	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &v.Files); err != nil {
			return nil, fmt.Errorf("failed to unmarshal version files: %w", err)
		}
	}
	if len(parsedJSON) > 0 {
		if err := json.Unmarshal(parsedJSON, &v.Parsed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal version frontmatter: %w", err)
		}
	}
	return &v, nil
}

func (db *PostgreSQL) CreateVersion(ctx context.Context, tx pgx.Tx, version *models.SkillVersion) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	filesJSON, err := json.Marshal(version.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal version files: %w", err)
	}
	parsedJSON, err := json.Marshal(version.Parsed)
	if err != nil {
		return fmt.Errorf("failed to marshal version frontmatter: %w", err)
	}

	query := `
		INSERT INTO skill_versions (id, skill_id, version, changelog, changelog_source,
			files, fingerprint, parsed, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = db.getExecutor(tx).Exec(ctx, query,
		version.ID, version.SkillID, version.Version, version.Changelog, string(version.ChangelogSource),
		filesJSON, version.Fingerprint, parsedJSON, version.CreatedBy, version.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrVersionExists
		}
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

func (db *PostgreSQL) GetVersion(ctx context.Context, tx pgx.Tx, id string) (*models.SkillVersion, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := "SELECT " + versionColumns + " FROM skill_versions WHERE id = $1"
	return scanVersion(db.getExecutor(tx).QueryRow(ctx, query, id))
}

func (db *PostgreSQL) GetVersionBySkillAndVersion(ctx context.Context, tx pgx.Tx, skillID, version string) (*models.SkillVersion, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := "SELECT " + versionColumns + " FROM skill_versions WHERE skill_id = $1 AND version = $2"
	return scanVersion(db.getExecutor(tx).QueryRow(ctx, query, skillID, version))
}

func (db *PostgreSQL) ListVersions(ctx context.Context, tx pgx.Tx, skillID string, cursor string, limit int) ([]*models.SkillVersion, string, error) {
	if limit <= 0 {
		limit = 20
	}

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	var whereConditions []string
	args := []any{skillID}
	argIndex := 2

	whereConditions = append(whereConditions, "skill_id = $1")

	if cursor != "" {
		parts := strings.SplitN(cursor, ":", 2)
		if len(parts) == 2 {
			if ts, err := time.Parse(time.RFC3339Nano, parts[0]); err == nil {
				whereConditions = append(whereConditions, fmt.Sprintf("(created_at < $%d OR (created_at = $%d AND id > $%d))", argIndex, argIndex, argIndex+1))
				args = append(args, ts, parts[1])
				argIndex += 2
			}
		}
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM skill_versions
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $%d
	`, versionColumns, strings.Join(whereConditions, " AND "), argIndex)
	args = append(args, limit)

	rows, err := db.getExecutor(tx).Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()

	var results []*models.SkillVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, "", err
		}
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("error iterating rows: %w", err)
	}

	nextCursor := ""
	if len(results) >= limit && len(results) > 0 {
		last := results[len(results)-1]
		nextCursor = last.CreatedAt.Format(time.RFC3339Nano) + ":" + last.ID
	}

	return results, nextCursor, nil
}

func (db *PostgreSQL) SetVersionSoftDeleted(ctx context.Context, tx pgx.Tx, id string, deleted bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := "UPDATE skill_versions SET soft_deleted_at = NULL WHERE id = $1"
	if deleted {
		query = "UPDATE skill_versions SET soft_deleted_at = now() WHERE id = $1"
	}
	tag, err := db.getExecutor(tx).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update version deletion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Fingerprints ---

func (db *PostgreSQL) CreateFingerprint(ctx context.Context, tx pgx.Tx, fp *models.VersionFingerprint) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `
		INSERT INTO version_fingerprints (skill_id, version_id, fingerprint, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := db.getExecutor(tx).Exec(ctx, query, fp.SkillID, fp.VersionID, fp.Fingerprint, fp.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create fingerprint: %w", err)
	}
	return nil
}

func (db *PostgreSQL) ListFingerprints(ctx context.Context, tx pgx.Tx, skillID, fingerprint string, limit int) ([]*models.VersionFingerprint, error) {
	if limit <= 0 {
		limit = 25
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT skill_id, version_id, fingerprint, created_at
		FROM version_fingerprints
		WHERE skill_id = $1 AND fingerprint = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := db.getExecutor(tx).Query(ctx, query, skillID, fingerprint, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var results []*models.VersionFingerprint
	for rows.Next() {
		var fp models.VersionFingerprint
		if err := rows.Scan(&fp.SkillID, &fp.VersionID, &fp.Fingerprint, &fp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint row: %w", err)
		}
		results = append(results, &fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (db *PostgreSQL) FindSkillIDByFingerprint(ctx context.Context, tx pgx.Tx, fingerprint string, excludeSkillID string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	query := `
		SELECT vf.skill_id
		FROM version_fingerprints vf
		JOIN skills s ON s.id = vf.skill_id
		WHERE vf.fingerprint = $1 AND vf.skill_id <> $2 AND s.soft_deleted_at IS NULL
		ORDER BY vf.created_at ASC
		LIMIT 1
	`
	var skillID string
	err := db.getExecutor(tx).QueryRow(ctx, query, fingerprint, excludeSkillID).Scan(&skillID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to probe fingerprint: %w", err)
	}
	return skillID, nil
}

// --- Embeddings ---

const embeddingColumns = `id, skill_id, version_id, owner_id, embedding, is_latest,
	is_approved, visibility, checksum, updated_at`

func scanEmbedding(row pgx.Row) (*models.SkillEmbedding, error) {
	var e models.SkillEmbedding
	var vec pgvector.Vector
	var visibility string

	err := row.Scan(&e.ID, &e.SkillID, &e.VersionID, &e.OwnerID, &vec, &e.IsLatest,
		&e.IsApproved, &visibility, &e.Checksum, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan embedding row: %w", err)
	}
	e.Vector = vec.Slice()
	e.Visibility = models.Visibility(visibility)
	return &e, nil
}

func (db *PostgreSQL) InsertEmbedding(ctx context.Context, tx pgx.Tx, emb *models.SkillEmbedding) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	literal, err := VectorLiteral(emb.Vector)
	if err != nil {
		return fmt.Errorf("invalid embedding vector: %w", err)
	}

	query := `
		INSERT INTO skill_embeddings (id, skill_id, version_id, owner_id, embedding,
			is_latest, is_approved, visibility, checksum, updated_at)
		VALUES ($1, $2, $3, $4, $5::vector, $6, $7, $8, $9, $10)
	`
	_, err = db.getExecutor(tx).Exec(ctx, query,
		emb.ID, emb.SkillID, emb.VersionID, emb.OwnerID, literal,
		emb.IsLatest, emb.IsApproved, string(emb.Visibility), emb.Checksum, emb.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

func (db *PostgreSQL) GetLatestEmbedding(ctx context.Context, tx pgx.Tx, skillID string) (*models.SkillEmbedding, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := "SELECT " + embeddingColumns + " FROM skill_embeddings WHERE skill_id = $1 AND is_latest = true LIMIT 1"
	return scanEmbedding(db.getExecutor(tx).QueryRow(ctx, query, skillID))
}

func (db *PostgreSQL) ListEmbeddingsBySkill(ctx context.Context, tx pgx.Tx, skillID string) ([]*models.SkillEmbedding, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := "SELECT " + embeddingColumns + " FROM skill_embeddings WHERE skill_id = $1 ORDER BY updated_at DESC"
	rows, err := db.getExecutor(tx).Query(ctx, query, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var results []*models.SkillEmbedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (db *PostgreSQL) PatchEmbedding(ctx context.Context, tx pgx.Tx, id string, isLatest, isApproved *bool, visibility *models.Visibility) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	setClauses := []string{"updated_at = now()"}
	args := []any{}
	argIndex := 1

	if isLatest != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_latest = $%d", argIndex))
		args = append(args, *isLatest)
		argIndex++
	}
	if isApproved != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_approved = $%d", argIndex))
		args = append(args, *isApproved)
		argIndex++
	}
	if visibility != nil {
		setClauses = append(setClauses, fmt.Sprintf("visibility = $%d", argIndex))
		args = append(args, string(*visibility))
		argIndex++
	}

	query := fmt.Sprintf("UPDATE skill_embeddings SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argIndex)
	args = append(args, id)

	tag, err := db.getExecutor(tx).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to patch embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgreSQL) SetEmbeddingsOwner(ctx context.Context, tx pgx.Tx, skillID, ownerUserID string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `UPDATE skill_embeddings SET owner_id = $1, updated_at = now() WHERE skill_id = $2`
	if _, err := db.getExecutor(tx).Exec(ctx, query, ownerUserID, skillID); err != nil {
		return fmt.Errorf("failed to reassign embeddings: %w", err)
	}
	return nil
}

func (db *PostgreSQL) VectorSearch(ctx context.Context, tx pgx.Tx, vector []float32, limit int, visibilities []models.Visibility) ([]EmbeddingHit, error) {
	if limit <= 0 {
		limit = 50
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	literal, err := VectorLiteral(vector)
	if err != nil {
		return nil, fmt.Errorf("invalid query vector: %w", err)
	}

	vis := make([]string, 0, len(visibilities))
	for _, v := range visibilities {
		vis = append(vis, string(v))
	}

	query := `
		SELECT ` + embeddingColumns + `, embedding <=> $1::vector AS score
		FROM skill_embeddings
		WHERE visibility = ANY($2) AND embedding IS NOT NULL
		ORDER BY score ASC
		LIMIT $3
	`
	rows, err := db.getExecutor(tx).Query(ctx, query, literal, vis, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	defer rows.Close()

	var results []EmbeddingHit
	for rows.Next() {
		var e models.SkillEmbedding
		var vec pgvector.Vector
		var visibility string
		var score float64
		err := rows.Scan(&e.ID, &e.SkillID, &e.VersionID, &e.OwnerID, &vec, &e.IsLatest,
			&e.IsApproved, &visibility, &e.Checksum, &e.UpdatedAt, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		e.Vector = vec.Slice()
		e.Visibility = models.Visibility(visibility)
		results = append(results, EmbeddingHit{Embedding: &e, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// --- Stars ---

func (db *PostgreSQL) AddStar(ctx context.Context, tx pgx.Tx, userID, skillID string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	query := `
		INSERT INTO stars (user_id, skill_id, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, skill_id) DO NOTHING
	`
	tag, err := db.getExecutor(tx).Exec(ctx, query, userID, skillID)
	if err != nil {
		return false, fmt.Errorf("failed to add star: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *PostgreSQL) RemoveStar(ctx context.Context, tx pgx.Tx, userID, skillID string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	tag, err := db.getExecutor(tx).Exec(ctx, "DELETE FROM stars WHERE user_id = $1 AND skill_id = $2", userID, skillID)
	if err != nil {
		return false, fmt.Errorf("failed to remove star: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// --- Comments ---

func (db *PostgreSQL) CreateComment(ctx context.Context, tx pgx.Tx, comment *models.Comment) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `
		INSERT INTO comments (id, skill_id, user_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.getExecutor(tx).Exec(ctx, query,
		comment.ID, comment.SkillID, comment.UserID, comment.Body, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (db *PostgreSQL) ListComments(ctx context.Context, tx pgx.Tx, skillID string, limit int) ([]*models.Comment, error) {
	if limit <= 0 {
		limit = 50
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT id, skill_id, user_id, body, created_at, soft_deleted_at
		FROM comments
		WHERE skill_id = $1 AND soft_deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := db.getExecutor(tx).Query(ctx, query, skillID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var results []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.SkillID, &c.UserID, &c.Body, &c.CreatedAt, &c.SoftDeletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		results = append(results, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

func (db *PostgreSQL) SoftDeleteComment(ctx context.Context, tx pgx.Tx, id string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tag, err := db.getExecutor(tx).Exec(ctx, "UPDATE comments SET soft_deleted_at = now() WHERE id = $1 AND soft_deleted_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("failed to soft delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Badges ---

func (db *PostgreSQL) UpsertBadge(ctx context.Context, tx pgx.Tx, badge *models.SkillBadge) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `
		INSERT INTO skill_badges (skill_id, kind, by_user_id, at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (skill_id, kind) DO UPDATE SET by_user_id = $3, at = $4
	`
	_, err := db.getExecutor(tx).Exec(ctx, query, badge.SkillID, string(badge.Kind), badge.ByUserID, badge.At)
	if err != nil {
		return fmt.Errorf("failed to upsert badge: %w", err)
	}
	return nil
}

func (db *PostgreSQL) DeleteBadge(ctx context.Context, tx pgx.Tx, skillID string, kind models.BadgeKind) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tag, err := db.getExecutor(tx).Exec(ctx, "DELETE FROM skill_badges WHERE skill_id = $1 AND kind = $2", skillID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to delete badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *PostgreSQL) ListBadges(ctx context.Context, tx pgx.Tx, skillID string) ([]*models.SkillBadge, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `
		SELECT skill_id, kind, by_user_id, at
		FROM skill_badges
		WHERE skill_id = $1
		ORDER BY kind
	`
	rows, err := db.getExecutor(tx).Query(ctx, query, skillID)
	if err != nil {
		return nil, fmt.Errorf("failed to query badges: %w", err)
	}
	defer rows.Close()

	var results []*models.SkillBadge
	for rows.Next() {
		var b models.SkillBadge
		var kind string
		if err := rows.Scan(&b.SkillID, &kind, &b.ByUserID, &b.At); err != nil {
			return nil, fmt.Errorf("failed to scan badge row: %w", err)
		}
		b.Kind = models.BadgeKind(kind)
		results = append(results, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return results, nil
}

// --- Audit ---

func (db *PostgreSQL) AppendAudit(ctx context.Context, tx pgx.Tx, entry *models.AuditLog) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	query := `
		INSERT INTO audit_logs (id, actor_user_id, action, target_type, target_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.getExecutor(tx).Exec(ctx, query,
		entry.ID, entry.ActorUserID, entry.Action, entry.TargetType, entry.TargetID,
		[]byte(entry.Metadata), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}
