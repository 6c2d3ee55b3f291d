package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/service"
)

// UpdateTagsInput represents the input for moving tags
type UpdateTagsInput struct {
	Slug string `path:"slug" doc:"Skill slug"`
	Body struct {
		Tags map[string]string `json:"tags" doc:"Tag name to version id; empty value removes the tag"`
	}
}

// RegisterEditEndpoints registers the authenticated owner-facing mutations
func RegisterEditEndpoints(api huma.API, registry service.RegistryService) {
	// Soft delete
	huma.Register(api, huma.Operation{
		OperationID: "delete-skill",
		Method:      http.MethodDelete,
		Path:        "/api/v1/skills/{slug}",
		Summary:     "Soft-delete a skill",
		Description: "Hide a skill from all public reads. Owner or moderator only.",
		Tags:        []string{"skills"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SkillDetailInput) (*Response[EmptyResponse], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if err := registry.SetSoftDeleted(ctx, user, input.Slug, true); err != nil {
			return nil, humaError(err)
		}
		return &Response[EmptyResponse]{Body: EmptyResponse{Message: "Skill deleted"}}, nil
	})

	// Undelete
	huma.Register(api, huma.Operation{
		OperationID: "undelete-skill",
		Method:      http.MethodPost,
		Path:        "/api/v1/skills/{slug}/undelete",
		Summary:     "Restore a soft-deleted skill",
		Tags:        []string{"skills"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SkillDetailInput) (*Response[EmptyResponse], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if err := registry.SetSoftDeleted(ctx, user, input.Slug, false); err != nil {
			return nil, humaError(err)
		}
		return &Response[EmptyResponse]{Body: EmptyResponse{Message: "Skill restored"}}, nil
	})

	// Tag updates
	huma.Register(api, huma.Operation{
		OperationID: "update-skill-tags",
		Method:      http.MethodPost,
		Path:        "/api/v1/skills/{slug}/tags",
		Summary:     "Update skill tags",
		Description: "Move or remove tags. Repointing latest also moves latestVersionId.",
		Tags:        []string{"skills"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *UpdateTagsInput) (*Response[models.Skill], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		skill, err := registry.UpdateTags(ctx, user, input.Slug, input.Body.Tags)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.Skill]{Body: *skill}, nil
	})

	// Star
	huma.Register(api, huma.Operation{
		OperationID: "star-skill",
		Method:      http.MethodPost,
		Path:        "/api/v1/stars/{slug}",
		Summary:     "Star a skill",
		Tags:        []string{"skills"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SkillDetailInput) (*Response[EmptyResponse], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if err := registry.Star(ctx, user.ID, input.Slug); err != nil {
			return nil, humaError(err)
		}
		return &Response[EmptyResponse]{Body: EmptyResponse{Message: "Starred"}}, nil
	})

	// Unstar
	huma.Register(api, huma.Operation{
		OperationID: "unstar-skill",
		Method:      http.MethodDelete,
		Path:        "/api/v1/stars/{slug}",
		Summary:     "Remove a star",
		Tags:        []string{"skills"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *SkillDetailInput) (*Response[EmptyResponse], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		if err := registry.Unstar(ctx, user.ID, input.Slug); err != nil {
			return nil, humaError(err)
		}
		return &Response[EmptyResponse]{Body: EmptyResponse{Message: "Unstarred"}}, nil
	})
}
