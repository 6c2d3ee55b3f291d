package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clawdhub/clawdhub/internal/registry/config"
)

// Payload is the text handed to the provider.
type Payload struct {
	Text string
}

// Result is the provider output for one payload.
type Result struct {
	Vector      []float32
	Dimensions  int
	Provider    string
	Model       string
	GeneratedAt time.Time
}

// Provider turns text into a fixed-dimension vector of floats.
type Provider interface {
	Generate(ctx context.Context, payload Payload) (*Result, error)
}

// PayloadChecksum returns the deterministic checksum for an embedding payload.
// Publishing an unchanged payload skips the provider call on re-index.
func PayloadChecksum(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// NewProvider builds a Provider from config; nil when embeddings are
// disabled or unconfigured.
func NewProvider(cfg config.EmbeddingsConfig) (Provider, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return newOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported embeddings provider: %s", cfg.Provider)
	}
}

// openAIProvider implements Provider using the OpenAI embeddings API.
type openAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
}

func newOpenAI(cfg config.EmbeddingsConfig) *openAIProvider {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAIBaseURL
	}
	if cfg.OpenAIOrg != "" {
		clientCfg.OrgID = cfg.OpenAIOrg
	}
	return &openAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (p *openAIProvider) Generate(ctx context.Context, payload Payload) (*Result, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{payload.Text},
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings response was empty")
	}

	vector := resp.Data[0].Embedding
	if p.dimensions > 0 && len(vector) != p.dimensions {
		return nil, fmt.Errorf("embedding dimensions mismatch: expected %d, got %d", p.dimensions, len(vector))
	}

	return &Result{
		Vector:      vector,
		Dimensions:  len(vector),
		Provider:    "openai",
		Model:       p.model,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
