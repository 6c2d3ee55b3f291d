// Package client is the HTTP client for the clawdhub registry API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/clawdhub/clawdhub/internal/models"
)

const defaultBaseURL = "https://clawdhub.com"

// requestTimeout bounds every non-upload call.
const requestTimeout = 15 * time.Second

// Client is a lightweight API client for the registry.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	token      string

	// ShowProgress enables per-file upload progress bars.
	ShowProgress bool
}

// New constructs a client with explicit baseURL and token.
func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// NewFromEnv constructs a client from CLAWDHUB_REGISTRY, falling back to the
// public registry.
func NewFromEnv(token string) *Client {
	return New(os.Getenv("CLAWDHUB_REGISTRY"), token)
}

// apiError is the problem+json body the registry returns on failures.
type apiError struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// StatusError carries the HTTP status alongside the server's message.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the registry.
func IsNotFound(err error) bool {
	se, ok := err.(*StatusError)
	return ok && se.StatusCode == http.StatusNotFound
}

func (c *Client) newRequest(ctx context.Context, method, pathWithQuery string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+pathWithQuery, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var problem apiError
	if err := json.Unmarshal(body, &problem); err == nil && (problem.Detail != "" || problem.Title != "") {
		msg := problem.Detail
		if msg == "" {
			msg = problem.Title
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

func (c *Client) doJSON(req *http.Request, out any) error {
	if out != nil {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getJSON(ctx context.Context, pathWithQuery string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, pathWithQuery, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSONRequest(ctx context.Context, method, pathWithQuery string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %T: %w", in, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, pathWithQuery, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, out)
}

// Ping checks connectivity to the registry.
func (c *Client) Ping(ctx context.Context) error {
	return c.getJSON(ctx, "/ping", nil)
}

// Whoami returns the user owning the configured token.
func (c *Client) Whoami(ctx context.Context) (*models.UserRef, error) {
	var body struct {
		User models.UserRef `json:"user"`
	}
	if err := c.getJSON(ctx, "/api/v1/whoami", &body); err != nil {
		return nil, err
	}
	return &body.User, nil
}

// Search runs the hybrid search.
func (c *Client) Search(ctx context.Context, query string, limit int, highlightedOnly bool) ([]models.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if highlightedOnly {
		q.Set("highlightedOnly", "true")
	}
	var body struct {
		Results []models.SearchResult `json:"results"`
	}
	if err := c.getJSON(ctx, "/api/v1/search?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}

// ListSkills fetches one page of the skill listing.
func (c *Client) ListSkills(ctx context.Context, sort string, cursor string, limit int) (*models.SkillPage, error) {
	q := url.Values{}
	if sort != "" {
		q.Set("sort", sort)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var page models.SkillPage
	if err := c.getJSON(ctx, "/api/v1/skills?"+q.Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetSkill fetches a skill with its latest version and owner.
func (c *Client) GetSkill(ctx context.Context, slug string) (*models.SkillDetail, error) {
	var detail models.SkillDetail
	if err := c.getJSON(ctx, "/api/v1/skills/"+url.PathEscape(slug), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetVersion fetches one version with its file manifest.
func (c *Client) GetVersion(ctx context.Context, slug, version string) (*models.SkillVersion, error) {
	var v models.SkillVersion
	path := "/api/v1/skills/" + url.PathEscape(slug) + "/versions/" + url.PathEscape(version)
	if err := c.getJSON(ctx, path, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Resolve maps a (slug, fingerprint) pair to a known version.
func (c *Client) Resolve(ctx context.Context, slug, hash string) (*models.ResolveResponse, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("hash", hash)
	var resp models.ResolveResponse
	if err := c.getJSON(ctx, "/api/v1/skill/resolve?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadZip fetches the zip archive for one version.
func (c *Client) DownloadZip(ctx context.Context, slug, version string) ([]byte, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("version", version)
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/download?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Publish uploads one version as a multipart request with inline file bytes.
// Uploads are not bounded by the default request timeout.
func (c *Client) Publish(ctx context.Context, req *models.PublishRequest, files map[string][]byte) (*models.PublishResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode publish payload: %w", err)
	}
	if err := mw.WriteField("payload", string(payload)); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		part, err := mw.CreateFormFile("files", p)
		if err != nil {
			return nil, err
		}
		if c.ShowProgress {
			bar := progressbar.DefaultBytes(int64(len(files[p])), p)
			if _, err := io.Copy(io.MultiWriter(part, bar), bytes.NewReader(files[p])); err != nil {
				return nil, err
			}
			_ = bar.Finish()
		} else if _, err := part.Write(files[p]); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/v1/skills", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	uploadClient := &http.Client{}
	resp, err := uploadClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out models.PublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTags moves or removes tags on a skill. Values are version ids;
// an empty value removes the tag.
func (c *Client) UpdateTags(ctx context.Context, slug string, tags map[string]string) error {
	in := map[string]any{"tags": tags}
	return c.doJSONRequest(ctx, http.MethodPost, "/api/v1/skills/"+url.PathEscape(slug)+"/tags", in, nil)
}

// Star stars a skill for the authenticated user.
func (c *Client) Star(ctx context.Context, slug string) error {
	return c.doJSONRequest(ctx, http.MethodPost, "/api/v1/stars/"+url.PathEscape(slug), nil, nil)
}

// Unstar removes a star.
func (c *Client) Unstar(ctx context.Context, slug string) error {
	return c.doJSONRequest(ctx, http.MethodDelete, "/api/v1/stars/"+url.PathEscape(slug), nil, nil)
}

// Delete soft-deletes a skill.
func (c *Client) Delete(ctx context.Context, slug string) error {
	return c.doJSONRequest(ctx, http.MethodDelete, "/api/v1/skills/"+url.PathEscape(slug), nil, nil)
}

// Undelete restores a soft-deleted skill.
func (c *Client) Undelete(ctx context.Context, slug string) error {
	return c.doJSONRequest(ctx, http.MethodPost, "/api/v1/skills/"+url.PathEscape(slug)+"/undelete", nil, nil)
}
