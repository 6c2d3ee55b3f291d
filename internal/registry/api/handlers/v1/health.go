package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clawdhub/clawdhub/internal/registry/config"
)

// HealthBody represents the health check response
type HealthBody struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Version string `json:"version,omitempty" doc:"Server version"`
}

// PingBody represents the ping response
type PingBody struct {
	Pong bool `json:"pong" example:"true" doc:"Always true"`
}

// RegisterHealthEndpoint registers the health check endpoint
func RegisterHealthEndpoint(api huma.API, cfg *config.Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"health"},
	}, func(ctx context.Context, input *struct{}) (*Response[HealthBody], error) {
		return &Response[HealthBody]{
			Body: HealthBody{Status: "ok", Version: cfg.Version},
		}, nil
	})
}

// RegisterPingEndpoint registers the ping endpoint
func RegisterPingEndpoint(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Summary:     "Ping",
		Tags:        []string{"ping"},
	}, func(ctx context.Context, input *struct{}) (*Response[PingBody], error) {
		return &Response[PingBody]{Body: PingBody{Pong: true}}, nil
	})
}
