package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/changelog"
	"github.com/clawdhub/clawdhub/internal/registry/config"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/embeddings"
	"github.com/clawdhub/clawdhub/internal/registry/ratelimit"
	"github.com/clawdhub/clawdhub/internal/registry/service"
	"github.com/clawdhub/clawdhub/internal/registry/storage"
)

const testSkillMd = `---
name: GIF Encoder
description: Encodes animated GIF images.
---

Encode GIFs.
`

func newTestServer(t *testing.T) (*Server, *database.Memory, string) {
	t.Helper()

	db := database.NewMemory()
	store := storage.NewMemory()
	cfg := &config.Config{ServerAddress: ":0", Version: "test"}
	svc := service.NewRegistryService(db, store, embeddings.NewFake(8), changelog.Static{}, service.NewDispatcher(cfg), cfg)

	ctx := context.Background()
	user := &models.User{ID: "alice", Handle: "alice", Role: models.RoleUser, CreatedAt: time.Now()}
	require.NoError(t, db.CreateUser(ctx, nil, user))

	rawToken, err := auth.NewToken()
	require.NoError(t, err)
	require.NoError(t, db.CreateToken(ctx, nil, &models.APIToken{
		Hash:      auth.HashToken(rawToken),
		UserID:    "alice",
		CreatedAt: time.Now(),
	}))

	server := NewServer(cfg, svc, auth.NewAuthenticator(db), ratelimit.New())
	return server, db, rawToken
}

func doRequest(server *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func multipartPublish(t *testing.T, slug, version string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload, err := json.Marshal(map[string]any{
		"slug":        slug,
		"displayName": slug,
		"version":     version,
	})
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("payload", string(payload)))

	for path, content := range files {
		part, err := mw.CreateFormFile("files", path)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthAndPing(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(server, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)

	w = doRequest(server, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPublishAndReadRoundTrip(t *testing.T) {
	server, _, token := newTestServer(t)

	body, contentType := multipartPublish(t, "gif-encoder", "1.0.0", map[string]string{
		"SKILL.md": testSkillMd,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/skills", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(server, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pub models.PublishResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pub))
	assert.NotEmpty(t, pub.Fingerprint)

	// Skill detail
	w = doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/skills/gif-encoder", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var detail models.SkillDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "gif-encoder", detail.Skill.Slug)

	// Raw file with ETag
	w = doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/skills/gif-encoder/file?path=SKILL.md", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testSkillMd, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("ETag"))

	// Resolver
	w = doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/skill/resolve?slug=gif-encoder&hash="+pub.Fingerprint, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resolved models.ResolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resolved))
	require.NotNil(t, resolved.Match)
	assert.Equal(t, pub.VersionID, resolved.Match.ID)

	// Zip download
	w = doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/download?slug=gif-encoder&version=1.0.0", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
}

func TestArchivedFileReadCacheHeaders(t *testing.T) {
	server, _, token := newTestServer(t)

	for _, version := range []string{"1.0.0", "1.1.0"} {
		body, contentType := multipartPublish(t, "gif-encoder", version, map[string]string{
			"SKILL.md": testSkillMd + "\nVersion " + version + "\n",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/skills", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Authorization", "Bearer "+token)
		w := doRequest(server, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// Reading an archived version is cacheable for a minute.
	w := doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/skills/gif-encoder/file?path=SKILL.md&version=1.0.0", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("ETag"))

	// The latest version carries no cache header.
	w = doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/skills/gif-encoder/file?path=SKILL.md", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Cache-Control"))
}

func TestPublishRequiresAuth(t *testing.T) {
	server, _, _ := newTestServer(t)

	body, contentType := multipartPublish(t, "gif-encoder", "1.0.0", map[string]string{"SKILL.md": testSkillMd})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/skills", body)
	req.Header.Set("Content-Type", contentType)
	w := doRequest(server, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvalidTokenRejected(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer chk_deadbeef")
	w := doRequest(server, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWhoami(t *testing.T) {
	server, _, token := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := doRequest(server, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alice"`)
}

func TestRateLimitHeadersAndDenial(t *testing.T) {
	server, _, _ := newTestServer(t)

	// Anonymous writes are limited per IP.
	var last *httptest.ResponseRecorder
	for i := 0; i < ratelimit.WriteIPLimit+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/stars/some-skill", nil)
		req.RemoteAddr = "10.1.2.3:4567"
		last = doRequest(server, req)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	// A different IP still has budget.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/skills", nil)
	req.RemoteAddr = "10.9.9.9:4567"
	w := doRequest(server, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprint(ratelimit.ReadIPLimit), w.Header().Get("X-RateLimit-Limit"))
}

func TestClientIPDerivation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 70.41.3.18")
	assert.Equal(t, "203.0.113.5", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", ClientIP(req))

	req.Header.Set("CF-Connecting-IP", "203.0.113.99")
	assert.Equal(t, "203.0.113.99", ClientIP(req))
}

func TestTrailingSlashRedirect(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := doRequest(server, httptest.NewRequest(http.MethodGet, "/api/v1/skills/", nil))
	assert.Equal(t, http.StatusPermanentRedirect, w.Code)
	assert.Equal(t, "/api/v1/skills", w.Header().Get("Location"))
}
