package changelog

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clawdhub/clawdhub/internal/registry/config"
)

// Input describes the version being summarized.
type Input struct {
	Slug        string
	Version     string
	PrevVersion string
	Files       []string
}

// Summarizer produces a short markdown changelog when the publisher did
// not supply one.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// New builds a Summarizer from config. The static fallback is always
// available, so publishes never fail on the summarizer.
func New(cfg config.ChangelogConfig, apiKey, baseURL string) Summarizer {
	if !cfg.Enabled || apiKey == "" {
		return Static{}
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &openAISummarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Static generates a plain one-line changelog without external calls.
type Static struct{}

func (Static) Summarize(_ context.Context, in Input) (string, error) {
	if in.PrevVersion == "" {
		return fmt.Sprintf("Initial release of %s.", in.Slug), nil
	}
	return fmt.Sprintf("Updated %s from %s to %s.", in.Slug, in.PrevVersion, in.Version), nil
}

type openAISummarizer struct {
	client *openai.Client
	model  string
}

func (s *openAISummarizer) Summarize(ctx context.Context, in Input) (string, error) {
	prompt := fmt.Sprintf(
		"Write a one-sentence markdown changelog for version %s of the skill %q. Files in the bundle: %s.",
		in.Version, in.Slug, strings.Join(in.Files, ", "))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 120,
	})
	if err != nil {
		// Summarizer failures never block a publish.
		return Static{}.Summarize(ctx, in)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Static{}.Summarize(ctx, in)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
