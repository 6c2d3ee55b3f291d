package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/client"
)

// fakeRegistry serves just enough of the API for classification: skill
// detail and the fingerprint resolver.
func fakeRegistry(t *testing.T, known map[string]string, syncedFingerprints map[string]string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/skills/{slug}", func(w http.ResponseWriter, r *http.Request) {
		slug := r.PathValue("slug")
		latest, ok := known[slug]
		if !ok {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"title": "Not Found", "status": 404, "detail": "skill not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"skill":         map[string]any{"slug": slug, "displayName": slug},
			"latestVersion": map[string]any{"version": latest},
		})
	})
	mux.HandleFunc("GET /api/v1/skill/resolve", func(w http.ResponseWriter, r *http.Request) {
		slug := r.URL.Query().Get("slug")
		hash := r.URL.Query().Get("hash")
		resp := map[string]any{"match": nil, "latestVersion": map[string]any{"version": known[slug]}}
		if syncedFingerprints[slug] == hash {
			resp["match"] = map[string]any{"id": "ver-" + slug, "version": known[slug]}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClassify(t *testing.T) {
	skills := []*LocalSkill{
		{Slug: "fresh", Fingerprint: "aa"},
		{Slug: "changed", Fingerprint: "bb"},
		{Slug: "same", Fingerprint: "cc"},
	}
	server := fakeRegistry(t,
		map[string]string{"changed": "1.4.0", "same": "2.0.0"},
		map[string]string{"same": "cc"},
	)

	c := client.New(server.URL, "")
	items, err := Classify(context.Background(), c, skills, 4)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, StateNew, items[0].State)
	assert.Empty(t, items[0].LatestVersion)

	assert.Equal(t, StateUpdate, items[1].State)
	assert.Equal(t, "1.4.0", items[1].LatestVersion)

	assert.Equal(t, StateSynced, items[2].State)
	assert.Equal(t, "2.0.0", items[2].MatchedVersion)
}

func TestClassifyConcurrencyClamped(t *testing.T) {
	assert.Equal(t, 1, clampConcurrency(0))
	assert.Equal(t, 1, clampConcurrency(-3))
	assert.Equal(t, 4, clampConcurrency(4))
	assert.Equal(t, 32, clampConcurrency(100))
}

func TestClassifyPropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	c := client.New(server.URL, "")
	_, err := Classify(context.Background(), c, []*LocalSkill{{Slug: "x", Fingerprint: "aa"}}, 2)
	assert.Error(t, err)
}
