// Package router contains API routing logic
package router

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	v1 "github.com/clawdhub/clawdhub/internal/registry/api/handlers/v1"
	"github.com/clawdhub/clawdhub/internal/registry/config"
	"github.com/clawdhub/clawdhub/internal/registry/service"
)

// NewHumaAPI creates a new Huma API with all routes registered.
// Note: authz is handled at the service layer, not at the API layer.
func NewHumaAPI(cfg *config.Config, registry service.RegistryService, mux *http.ServeMux) huma.API {
	humaConfig := huma.DefaultConfig("ClawdHub Registry", cfg.Version)
	humaConfig.Info.Description = "A public registry for versioned, content-addressed skill bundles."
	// Disable $schema property in responses: https://github.com/danielgtaylor/huma/issues/230
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}

	api := humago.New(mux, humaConfig)

	api.OpenAPI().Tags = []*huma.Tag{
		{
			Name:        "skills",
			Description: "Operations for discovering, retrieving and publishing skills",
		},
		{
			Name:        "auth",
			Description: "Authentication operations",
		},
		{
			Name:        "admin",
			Description: "Moderation operations (require elevated permissions)",
		},
		{
			Name:        "health",
			Description: "Health check endpoint for monitoring service availability",
		},
		{
			Name:        "ping",
			Description: "Simple ping endpoint for testing connectivity",
		},
	}

	RegisterRoutes(api, cfg, registry, mux)

	return api
}

// RegisterRoutes registers all API routes. This is the single entry point
// for route registration.
func RegisterRoutes(api huma.API, cfg *config.Config, registry service.RegistryService, mux *http.ServeMux) {
	v1.RegisterHealthEndpoint(api, cfg)
	v1.RegisterPingEndpoint(api)

	v1.RegisterSkillsEndpoints(api, registry)
	v1.RegisterEditEndpoints(api, registry)
	v1.RegisterAdminEndpoints(api, registry)

	// Raw-bytes endpoints bypass huma and sit on the mux directly.
	v1.RegisterFileEndpoints(mux, registry)
	v1.RegisterPublishEndpoint(mux, registry)
}
