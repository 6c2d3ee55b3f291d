package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/service"
)

// SetBadgeInput represents the input for toggling a badge
type SetBadgeInput struct {
	Slug string `path:"slug" doc:"Skill slug"`
	Body struct {
		Kind models.BadgeKind `json:"kind" doc:"Badge kind" enum:"highlighted,official,deprecated,redactionApproved"`
		On   bool             `json:"on" doc:"Set or clear the badge"`
	}
}

// SetDuplicateInput represents the input for marking a duplicate
type SetDuplicateInput struct {
	Slug string `path:"slug" doc:"Skill slug"`
	Body struct {
		CanonicalSlug string `json:"canonicalSlug" doc:"Canonical skill slug; empty clears the marker"`
	}
}

// ChangeOwnerInput represents the input for transferring a skill
type ChangeOwnerInput struct {
	Slug string `path:"slug" doc:"Skill slug"`
	Body struct {
		OwnerUserID string `json:"ownerUserId" doc:"New owner user id"`
	}
}

// RegisterAdminEndpoints registers the moderation and admin mutations.
// Role checks live in the service layer; the handlers only resolve the actor.
func RegisterAdminEndpoints(api huma.API, registry service.RegistryService) {
	huma.Register(api, huma.Operation{
		OperationID: "set-skill-badge",
		Method:      http.MethodPost,
		Path:        "/api/v1/skills/{slug}/badge",
		Summary:     "Set or clear a moderation badge",
		Tags:        []string{"admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SetBadgeInput) (*Response[EmptyResponse], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if err := registry.SetBadge(ctx, user, input.Slug, input.Body.Kind, input.Body.On); err != nil {
			return nil, humaError(err)
		}
		return &Response[EmptyResponse]{Body: EmptyResponse{Message: "Badge updated"}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-skill-duplicate",
		Method:      http.MethodPost,
		Path:        "/api/v1/skills/{slug}/duplicate",
		Summary:     "Mark or clear a duplicate",
		Tags:        []string{"admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SetDuplicateInput) (*Response[models.Skill], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		skill, err := registry.SetDuplicate(ctx, user, input.Slug, input.Body.CanonicalSlug)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.Skill]{Body: *skill}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-skill-owner",
		Method:      http.MethodPost,
		Path:        "/api/v1/skills/{slug}/owner",
		Summary:     "Transfer a skill to another user",
		Tags:        []string{"admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *ChangeOwnerInput) (*Response[models.Skill], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		skill, err := registry.ChangeOwner(ctx, user, input.Slug, input.Body.OwnerUserID)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.Skill]{Body: *skill}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purge-skill",
		Method:      http.MethodDelete,
		Path:        "/api/v1/skills/{slug}/purge",
		Summary:     "Permanently delete a skill",
		Description: "Remove the skill and every dependent record and blob. Admin only.",
		Tags:        []string{"admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SkillDetailInput) (*Response[EmptyResponse], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if err := registry.HardDelete(ctx, user, input.Slug); err != nil {
			return nil, humaError(err)
		}
		return &Response[EmptyResponse]{Body: EmptyResponse{Message: "Skill permanently deleted"}}, nil
	})
}
