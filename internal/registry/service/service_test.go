package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/changelog"
	"github.com/clawdhub/clawdhub/internal/registry/config"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/embeddings"
	"github.com/clawdhub/clawdhub/internal/registry/storage"
)

const gifSkillMd = `---
name: GIF Encoder
description: Encodes animated GIF images from frame sequences.
---

Use this skill to turn frames into an animated GIF.
`

const gogkitSkillMd = `---
name: Gogkit
description: Scaffolds game projects with a batteries-included toolkit.
---

Use this skill to scaffold a new game project.
`

type testEnv struct {
	svc   *registryService
	db    *database.Memory
	store *storage.Memory
	fake  *embeddings.Fake
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := database.NewMemory()
	store := storage.NewMemory()
	fake := embeddings.NewFake(8)
	cfg := &config.Config{}
	svc := NewRegistryService(db, store, fake, changelog.Static{}, NewDispatcher(cfg), cfg).(*registryService)
	return &testEnv{svc: svc, db: db, store: store, fake: fake}
}

func (e *testEnv) seedUser(t *testing.T, id string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{ID: id, Handle: id, Role: role, CreatedAt: time.Now()}
	require.NoError(t, e.db.CreateUser(context.Background(), nil, u))
	return u
}

func buildPublish(slug, version string, files map[string]string) (*models.PublishRequest, map[string][]byte) {
	req := &models.PublishRequest{
		Slug:        slug,
		DisplayName: slug,
		Version:     version,
	}
	inline := map[string][]byte{}
	for p, content := range files {
		data := []byte(content)
		req.Files = append(req.Files, models.PublishFile{
			Path:   p,
			Size:   int64(len(data)),
			SHA256: bundle.HashBytes(data),
		})
		inline[p] = data
	}
	return req, inline
}

func (e *testEnv) mustPublish(t *testing.T, userID, slug, version string, files map[string]string) *models.PublishResponse {
	t.Helper()
	req, inline := buildPublish(slug, version, files)
	resp, err := e.svc.Publish(context.Background(), userID, req, inline)
	require.NoError(t, err)
	return resp
}
