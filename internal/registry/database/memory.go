package database

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clawdhub/clawdhub/internal/models"
)

// Memory is an in-memory implementation of the Database interface. It backs
// tests and local development without PostgreSQL. All methods copy values on
// the way in and out so callers never share mutable state with the store.
type Memory struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	tokens       map[string]*models.APIToken
	skills       map[string]*models.Skill
	versions     map[string]*models.SkillVersion
	fingerprints []*models.VersionFingerprint
	embeddings   map[string]*models.SkillEmbedding
	stars        map[string]map[string]time.Time // userID -> skillID -> at
	comments     map[string]*models.Comment
	badges       map[string]map[models.BadgeKind]*models.SkillBadge
	audit        []*models.AuditLog
}

// NewMemory creates an empty in-memory database.
func NewMemory() *Memory {
	return &Memory{
		users:      map[string]*models.User{},
		tokens:     map[string]*models.APIToken{},
		skills:     map[string]*models.Skill{},
		versions:   map[string]*models.SkillVersion{},
		embeddings: map[string]*models.SkillEmbedding{},
		stars:      map[string]map[string]time.Time{},
		comments:   map[string]*models.Comment{},
		badges:     map[string]map[models.BadgeKind]*models.SkillBadge{},
	}
}

func (m *Memory) Close() error { return nil }

// InTransaction runs fn directly; the in-memory store mutates under a lock
// per call and offers no rollback.
func (m *Memory) InTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fn(ctx, nil)
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copySkill(s *models.Skill) *models.Skill {
	c := *s
	if s.Tags != nil {
		c.Tags = make(map[string]string, len(s.Tags))
		for k, v := range s.Tags {
			c.Tags[k] = v
		}
	}
	if s.ForkOf != nil {
		fork := *s.ForkOf
		c.ForkOf = &fork
	}
	return &c
}

func copyVersion(v *models.SkillVersion) *models.SkillVersion {
	c := *v
	c.Files = append([]models.VersionFile(nil), v.Files...)
	return &c
}

func copyEmbedding(e *models.SkillEmbedding) *models.SkillEmbedding {
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	return &c
}

// --- Users and tokens ---

func (m *Memory) CreateUser(ctx context.Context, _ pgx.Tx, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return ErrAlreadyExists
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *Memory) GetUser(ctx context.Context, _ pgx.Tx, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) GetUserByHandle(ctx context.Context, _ pgx.Tx, handle string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Handle == handle && handle != "" {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateToken(ctx context.Context, _ pgx.Tx, token *models.APIToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token.Hash]; ok {
		return ErrAlreadyExists
	}
	c := *token
	m.tokens[token.Hash] = &c
	return nil
}

func (m *Memory) GetTokenByHash(ctx context.Context, _ pgx.Tx, hash string) (*models.APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *Memory) RevokeToken(ctx context.Context, _ pgx.Tx, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[hash]
	if !ok || t.RevokedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	return nil
}

// --- Skills ---

func (m *Memory) CreateSkill(ctx context.Context, _ pgx.Tx, skill *models.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[skill.ID]; ok {
		return ErrAlreadyExists
	}
	for _, s := range m.skills {
		if s.Slug == skill.Slug {
			return ErrAlreadyExists
		}
	}
	m.skills[skill.ID] = copySkill(skill)
	return nil
}

func (m *Memory) GetSkillByID(ctx context.Context, _ pgx.Tx, id string) (*models.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.skills[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySkill(s), nil
}

func (m *Memory) GetSkillBySlug(ctx context.Context, _ pgx.Tx, slug string) (*models.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.skills {
		if s.Slug == slug {
			return copySkill(s), nil
		}
	}
	return nil, ErrNotFound
}

func statValue(s *models.Skill, sortBy SkillSort) int64 {
	switch sortBy {
	case SortDownloads, SortTrending:
		return s.Stats.Downloads
	case SortStars:
		return s.Stats.Stars
	case SortInstallsCurrent:
		return s.Stats.InstallsCurrent
	case SortInstallsAllTime:
		return s.Stats.InstallsAllTime
	default:
		return 0
	}
}

func (m *Memory) ListSkills(ctx context.Context, _ pgx.Tx, filter *SkillFilter, cursor string, limit int) ([]*models.Skill, string, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sortBy := SortUpdated
	var all []*models.Skill
	for _, s := range m.skills {
		if filter != nil {
			if filter.Sort != "" {
				sortBy = filter.Sort
			}
			if filter.OwnerUserID != nil && s.OwnerUserID != *filter.OwnerUserID {
				continue
			}
			if filter.Slug != nil && s.Slug != *filter.Slug {
				continue
			}
			if !filter.IncludeDeleted && s.SoftDeletedAt != nil {
				continue
			}
			if !filter.IncludeHidden && s.ModerationStatus != models.ModerationActive {
				continue
			}
		} else {
			if s.SoftDeletedAt != nil || s.ModerationStatus != models.ModerationActive {
				continue
			}
		}
		all = append(all, s)
	}

	if sortBy == SortUpdated {
		sort.Slice(all, func(i, j int) bool {
			if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
				return all[i].UpdatedAt.After(all[j].UpdatedAt)
			}
			return all[i].ID < all[j].ID
		})
	} else {
		sort.Slice(all, func(i, j int) bool {
			vi, vj := statValue(all[i], sortBy), statValue(all[j], sortBy)
			if vi != vj {
				return vi > vj
			}
			return all[i].ID < all[j].ID
		})
	}

	start := 0
	if cursor != "" && sortBy == SortUpdated {
		parts := strings.SplitN(cursor, ":", 2)
		if len(parts) == 2 {
			if ts, err := time.Parse(time.RFC3339Nano, parts[0]); err == nil {
				for i, s := range all {
					if s.UpdatedAt.Before(ts) || (s.UpdatedAt.Equal(ts) && s.ID > parts[1]) {
						start = i
						break
					}
					start = len(all)
				}
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	results := make([]*models.Skill, 0, end-start)
	for _, s := range all[start:end] {
		results = append(results, copySkill(s))
	}

	nextCursor := ""
	if sortBy == SortUpdated && len(results) >= limit && len(results) > 0 {
		last := results[len(results)-1]
		nextCursor = last.UpdatedAt.Format(time.RFC3339Nano) + ":" + last.ID
	}
	return results, nextCursor, nil
}

func (m *Memory) PatchSkill(ctx context.Context, _ pgx.Tx, id string, patch *SkillPatch) (*models.Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skills[id]
	if !ok {
		return nil, ErrNotFound
	}

	if patch.DisplayName != nil {
		s.DisplayName = *patch.DisplayName
	}
	if patch.Summary != nil {
		s.Summary = *patch.Summary
	}
	if patch.LatestVersionID != nil {
		s.LatestVersionID = *patch.LatestVersionID
	}
	if patch.Tags != nil {
		s.Tags = make(map[string]string, len(patch.Tags))
		for k, v := range patch.Tags {
			s.Tags[k] = v
		}
	}
	if patch.ClearCanonical {
		s.CanonicalSkillID = ""
	} else if patch.CanonicalSkillID != nil {
		s.CanonicalSkillID = *patch.CanonicalSkillID
	}
	if patch.ClearForkOf {
		s.ForkOf = nil
	} else if patch.ForkOf != nil {
		fork := *patch.ForkOf
		s.ForkOf = &fork
	}
	if patch.OwnerUserID != nil {
		s.OwnerUserID = *patch.OwnerUserID
	}
	if patch.ModerationStatus != nil {
		s.ModerationStatus = *patch.ModerationStatus
	}
	if patch.SetSoftDeleted != nil {
		if *patch.SetSoftDeleted {
			now := time.Now()
			s.SoftDeletedAt = &now
		} else {
			s.SoftDeletedAt = nil
		}
	}
	if patch.ReportCount != nil {
		s.ReportCount = *patch.ReportCount
	}
	s.UpdatedAt = time.Now()
	return copySkill(s), nil
}

func (m *Memory) BumpSkillStats(ctx context.Context, _ pgx.Tx, id string, delta StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.skills[id]
	if !ok {
		return ErrNotFound
	}
	clamp := func(v int64) int64 {
		if v < 0 {
			return 0
		}
		return v
	}
	s.Stats.Downloads = clamp(s.Stats.Downloads + delta.Downloads)
	s.Stats.Stars = clamp(s.Stats.Stars + delta.Stars)
	s.Stats.Versions = clamp(s.Stats.Versions + delta.Versions)
	s.Stats.Comments = clamp(s.Stats.Comments + delta.Comments)
	s.Stats.InstallsCurrent = clamp(s.Stats.InstallsCurrent + delta.InstallsCurrent)
	s.Stats.InstallsAllTime = clamp(s.Stats.InstallsAllTime + delta.InstallsAllTime)
	return nil
}

func (m *Memory) HardDeleteSkill(ctx context.Context, _ pgx.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.skills[id]; !ok {
		return ErrNotFound
	}
	delete(m.skills, id)

	for vid, v := range m.versions {
		if v.SkillID == id {
			delete(m.versions, vid)
		}
	}
	kept := m.fingerprints[:0]
	for _, fp := range m.fingerprints {
		if fp.SkillID != id {
			kept = append(kept, fp)
		}
	}
	m.fingerprints = kept
	for eid, e := range m.embeddings {
		if e.SkillID == id {
			delete(m.embeddings, eid)
		}
	}
	for cid, c := range m.comments {
		if c.SkillID == id {
			delete(m.comments, cid)
		}
	}
	delete(m.badges, id)
	for _, starred := range m.stars {
		delete(starred, id)
	}
	for _, s := range m.skills {
		if s.CanonicalSkillID == id {
			s.CanonicalSkillID = ""
		}
		if s.ForkOf != nil && s.ForkOf.SkillID == id {
			s.ForkOf = nil
		}
	}
	return nil
}

// --- Versions ---

func (m *Memory) CreateVersion(ctx context.Context, _ pgx.Tx, version *models.SkillVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions {
		if v.SkillID == version.SkillID && v.Version == version.Version {
			return ErrVersionExists
		}
	}
	m.versions[version.ID] = copyVersion(version)
	return nil
}

func (m *Memory) GetVersion(ctx context.Context, _ pgx.Tx, id string) (*models.SkillVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyVersion(v), nil
}

func (m *Memory) GetVersionBySkillAndVersion(ctx context.Context, _ pgx.Tx, skillID, version string) (*models.SkillVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.versions {
		if v.SkillID == skillID && v.Version == version {
			return copyVersion(v), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListVersions(ctx context.Context, _ pgx.Tx, skillID string, cursor string, limit int) ([]*models.SkillVersion, string, error) {
	if limit <= 0 {
		limit = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*models.SkillVersion
	for _, v := range m.versions {
		if v.SkillID == skillID {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	start := 0
	if cursor != "" {
		parts := strings.SplitN(cursor, ":", 2)
		if len(parts) == 2 {
			if ts, err := time.Parse(time.RFC3339Nano, parts[0]); err == nil {
				for i, v := range all {
					if v.CreatedAt.Before(ts) || (v.CreatedAt.Equal(ts) && v.ID > parts[1]) {
						start = i
						break
					}
					start = len(all)
				}
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	results := make([]*models.SkillVersion, 0, end-start)
	for _, v := range all[start:end] {
		results = append(results, copyVersion(v))
	}

	nextCursor := ""
	if len(results) >= limit && len(results) > 0 {
		last := results[len(results)-1]
		nextCursor = last.CreatedAt.Format(time.RFC3339Nano) + ":" + last.ID
	}
	return results, nextCursor, nil
}

func (m *Memory) SetVersionSoftDeleted(ctx context.Context, _ pgx.Tx, id string, deleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[id]
	if !ok {
		return ErrNotFound
	}
	if deleted {
		now := time.Now()
		v.SoftDeletedAt = &now
	} else {
		v.SoftDeletedAt = nil
	}
	return nil
}

// --- Fingerprints ---

func (m *Memory) CreateFingerprint(ctx context.Context, _ pgx.Tx, fp *models.VersionFingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.fingerprints {
		if existing.VersionID == fp.VersionID {
			return ErrAlreadyExists
		}
	}
	c := *fp
	m.fingerprints = append(m.fingerprints, &c)
	return nil
}

func (m *Memory) ListFingerprints(ctx context.Context, _ pgx.Tx, skillID, fingerprint string, limit int) ([]*models.VersionFingerprint, error) {
	if limit <= 0 {
		limit = 25
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*models.VersionFingerprint
	for _, fp := range m.fingerprints {
		if fp.SkillID == skillID && fp.Fingerprint == fingerprint {
			c := *fp
			matched = append(matched, &c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *Memory) FindSkillIDByFingerprint(ctx context.Context, _ pgx.Tx, fingerprint string, excludeSkillID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []*models.VersionFingerprint
	for _, fp := range m.fingerprints {
		if fp.Fingerprint != fingerprint || fp.SkillID == excludeSkillID {
			continue
		}
		s, ok := m.skills[fp.SkillID]
		if !ok || s.SoftDeletedAt != nil {
			continue
		}
		candidates = append(candidates, fp)
	}
	if len(candidates) == 0 {
		return "", ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0].SkillID, nil
}

// --- Embeddings ---

func (m *Memory) InsertEmbedding(ctx context.Context, _ pgx.Tx, emb *models.SkillEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.embeddings[emb.ID]; ok {
		return ErrAlreadyExists
	}
	m.embeddings[emb.ID] = copyEmbedding(emb)
	return nil
}

func (m *Memory) GetLatestEmbedding(ctx context.Context, _ pgx.Tx, skillID string) (*models.SkillEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.embeddings {
		if e.SkillID == skillID && e.IsLatest {
			return copyEmbedding(e), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListEmbeddingsBySkill(ctx context.Context, _ pgx.Tx, skillID string) ([]*models.SkillEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []*models.SkillEmbedding
	for _, e := range m.embeddings {
		if e.SkillID == skillID {
			results = append(results, copyEmbedding(e))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})
	return results, nil
}

func (m *Memory) PatchEmbedding(ctx context.Context, _ pgx.Tx, id string, isLatest, isApproved *bool, visibility *models.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.embeddings[id]
	if !ok {
		return ErrNotFound
	}
	if isLatest != nil {
		e.IsLatest = *isLatest
	}
	if isApproved != nil {
		e.IsApproved = *isApproved
	}
	if visibility != nil {
		e.Visibility = *visibility
	}
	e.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) SetEmbeddingsOwner(ctx context.Context, _ pgx.Tx, skillID, ownerUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.embeddings {
		if e.SkillID == skillID {
			e.OwnerID = ownerUserID
			e.UpdatedAt = time.Now()
		}
	}
	return nil
}

// cosineDistance matches pgvector's <=> operator.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func (m *Memory) VectorSearch(ctx context.Context, _ pgx.Tx, vector []float32, limit int, visibilities []models.Visibility) ([]EmbeddingHit, error) {
	if limit <= 0 {
		limit = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	allowed := map[models.Visibility]bool{}
	for _, v := range visibilities {
		allowed[v] = true
	}

	var hits []EmbeddingHit
	for _, e := range m.embeddings {
		if !allowed[e.Visibility] || len(e.Vector) == 0 {
			continue
		}
		hits = append(hits, EmbeddingHit{
			Embedding: copyEmbedding(e),
			Score:     cosineDistance(vector, e.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score < hits[j].Score
		}
		return hits[i].Embedding.ID < hits[j].Embedding.ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// --- Stars ---

func (m *Memory) AddStar(ctx context.Context, _ pgx.Tx, userID, skillID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stars[userID] == nil {
		m.stars[userID] = map[string]time.Time{}
	}
	if _, ok := m.stars[userID][skillID]; ok {
		return false, nil
	}
	m.stars[userID][skillID] = time.Now()
	return true, nil
}

func (m *Memory) RemoveStar(ctx context.Context, _ pgx.Tx, userID, skillID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stars[userID][skillID]; !ok {
		return false, nil
	}
	delete(m.stars[userID], skillID)
	return true, nil
}

// --- Comments ---

func (m *Memory) CreateComment(ctx context.Context, _ pgx.Tx, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *comment
	m.comments[comment.ID] = &c
	return nil
}

func (m *Memory) ListComments(ctx context.Context, _ pgx.Tx, skillID string, limit int) ([]*models.Comment, error) {
	if limit <= 0 {
		limit = 50
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*models.Comment
	for _, c := range m.comments {
		if c.SkillID == skillID && c.SoftDeletedAt == nil {
			cc := *c
			results = append(results, &cc)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Memory) SoftDeleteComment(ctx context.Context, _ pgx.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok || c.SoftDeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	c.SoftDeletedAt = &now
	return nil
}

// --- Badges ---

func (m *Memory) UpsertBadge(ctx context.Context, _ pgx.Tx, badge *models.SkillBadge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.badges[badge.SkillID] == nil {
		m.badges[badge.SkillID] = map[models.BadgeKind]*models.SkillBadge{}
	}
	b := *badge
	m.badges[badge.SkillID][badge.Kind] = &b
	return nil
}

func (m *Memory) DeleteBadge(ctx context.Context, _ pgx.Tx, skillID string, kind models.BadgeKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.badges[skillID][kind]; !ok {
		return ErrNotFound
	}
	delete(m.badges[skillID], kind)
	return nil
}

func (m *Memory) ListBadges(ctx context.Context, _ pgx.Tx, skillID string) ([]*models.SkillBadge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var results []*models.SkillBadge
	for _, b := range m.badges[skillID] {
		c := *b
		results = append(results, &c)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Kind < results[j].Kind
	})
	return results, nil
}

// --- Audit ---

func (m *Memory) AppendAudit(ctx context.Context, _ pgx.Tx, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *entry
	m.audit = append(m.audit, &c)
	return nil
}

// AuditEntries returns a snapshot of the audit log, oldest first.
func (m *Memory) AuditEntries() []*models.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.AuditLog, len(m.audit))
	for i, e := range m.audit {
		c := *e
		out[i] = &c
	}
	return out
}
