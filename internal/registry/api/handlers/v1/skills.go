package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/auth"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/service"
)

// SearchInput represents the input for the hybrid search endpoint
type SearchInput struct {
	Query           string `query:"q" doc:"Search query" example:"gif encoder"`
	Limit           int    `query:"limit" doc:"Maximum number of results" default:"10" minimum:"1" maximum:"50" example:"10"`
	HighlightedOnly bool   `query:"highlightedOnly" doc:"Restrict to highlighted skills" required:"false"`
}

// SearchBody wraps the search results
type SearchBody struct {
	Results []models.SearchResult `json:"results"`
}

// ListSkillsInput represents the input for listing skills
type ListSkillsInput struct {
	Limit  int    `query:"limit" doc:"Number of items per page" default:"20" minimum:"1" maximum:"200" example:"50"`
	Cursor string `query:"cursor" doc:"Pagination cursor" required:"false"`
	Sort   string `query:"sort" doc:"Ordering" enum:"updated,downloads,stars,installsCurrent,installsAllTime,trending" default:"updated"`
}

// SkillDetailInput represents the input for getting skill details
type SkillDetailInput struct {
	Slug string `path:"slug" doc:"Skill slug" example:"gif-encoder"`
}

// SkillVersionsInput represents the input for listing a skill's versions
type SkillVersionsInput struct {
	Slug   string `path:"slug" doc:"Skill slug" example:"gif-encoder"`
	Limit  int    `query:"limit" doc:"Number of items per page" default:"20" minimum:"1" maximum:"200"`
	Cursor string `query:"cursor" doc:"Pagination cursor" required:"false"`
}

// SkillVersionDetailInput represents the input for one version
type SkillVersionDetailInput struct {
	Slug    string `path:"slug" doc:"Skill slug" example:"gif-encoder"`
	Version string `path:"version" doc:"Exact semver version" example:"1.0.0"`
}

// ResolveInput represents the input for the fingerprint resolver
type ResolveInput struct {
	Slug string `query:"slug" doc:"Skill slug" example:"gif-encoder"`
	Hash string `query:"hash" doc:"Bundle fingerprint (64 lowercase hex chars)"`
}

// WhoamiBody wraps the authenticated user
type WhoamiBody struct {
	User models.UserRef `json:"user"`
}

// RegisterSkillsEndpoints registers the public read endpoints
func RegisterSkillsEndpoints(api huma.API, registry service.RegistryService) {
	// Hybrid search
	huma.Register(api, huma.Operation{
		OperationID: "search-skills",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search skills",
		Description: "Hybrid semantic plus exact-token search over public skills.",
		Tags:        []string{"skills"},
	}, func(ctx context.Context, input *SearchInput) (*Response[SearchBody], error) {
		results, err := registry.Search(ctx, input.Query, input.Limit, input.HighlightedOnly)
		if err != nil {
			return nil, humaError(err)
		}
		if results == nil {
			results = []models.SearchResult{}
		}
		return &Response[SearchBody]{Body: SearchBody{Results: results}}, nil
	})

	// List skills
	huma.Register(api, huma.Operation{
		OperationID: "list-skills",
		Method:      http.MethodGet,
		Path:        "/api/v1/skills",
		Summary:     "List skills",
		Description: "Get a paginated list of public skills. Only sort=updated honours the cursor.",
		Tags:        []string{"skills"},
	}, func(ctx context.Context, input *ListSkillsInput) (*Response[models.SkillPage], error) {
		page, err := registry.ListSkills(ctx, database.SkillSort(input.Sort), input.Cursor, input.Limit)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.SkillPage]{Body: *page}, nil
	})

	// Skill detail
	huma.Register(api, huma.Operation{
		OperationID: "get-skill",
		Method:      http.MethodGet,
		Path:        "/api/v1/skills/{slug}",
		Summary:     "Get skill",
		Description: "Get a skill with its latest version, owner and badges.",
		Tags:        []string{"skills"},
	}, func(ctx context.Context, input *SkillDetailInput) (*Response[models.SkillDetail], error) {
		detail, err := registry.GetSkill(ctx, input.Slug)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.SkillDetail]{Body: *detail}, nil
	})

	// Version list
	huma.Register(api, huma.Operation{
		OperationID: "list-skill-versions",
		Method:      http.MethodGet,
		Path:        "/api/v1/skills/{slug}/versions",
		Summary:     "List skill versions",
		Tags:        []string{"skills"},
	}, func(ctx context.Context, input *SkillVersionsInput) (*Response[models.VersionPage], error) {
		page, err := registry.ListVersions(ctx, input.Slug, input.Cursor, input.Limit)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.VersionPage]{Body: *page}, nil
	})

	// Version detail
	huma.Register(api, huma.Operation{
		OperationID: "get-skill-version",
		Method:      http.MethodGet,
		Path:        "/api/v1/skills/{slug}/versions/{version}",
		Summary:     "Get skill version",
		Description: "Get one version with its file manifest.",
		Tags:        []string{"skills"},
	}, func(ctx context.Context, input *SkillVersionDetailInput) (*Response[models.SkillVersion], error) {
		version, err := registry.GetVersion(ctx, input.Slug, input.Version)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.SkillVersion]{Body: *version}, nil
	})

	// Fingerprint resolver
	huma.Register(api, huma.Operation{
		OperationID: "resolve-fingerprint",
		Method:      http.MethodGet,
		Path:        "/api/v1/skill/resolve",
		Summary:     "Resolve a bundle fingerprint",
		Description: "Map a (slug, fingerprint) pair to a previously published version.",
		Tags:        []string{"skills"},
	}, func(ctx context.Context, input *ResolveInput) (*Response[models.ResolveResponse], error) {
		resp, err := registry.Resolve(ctx, input.Slug, input.Hash)
		if err != nil {
			return nil, humaError(err)
		}
		return &Response[models.ResolveResponse]{Body: *resp}, nil
	})

	// Whoami
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/api/v1/whoami",
		Summary:     "Current user",
		Tags:        []string{"auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, func(ctx context.Context, input *struct{}) (*Response[WhoamiBody], error) {
		user, err := auth.RequireUser(ctx)
		if err != nil {
			return nil, huma.Error401Unauthorized("Authentication required")
		}
		return &Response[WhoamiBody]{Body: WhoamiBody{User: user.Ref()}}, nil
	})
}
