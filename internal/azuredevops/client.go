// Package azuredevops is a client for the two Azure DevOps REST operations
// the tool layer exposes: fetching a work item and creating a pull request.
// Authentication is Basic with an empty user and the personal access token
// as password, the scheme the API documents for PATs.
package azuredevops

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	apiVersion     = "7.0"
	defaultTimeout = 30 * time.Second
)

// APIError is a non-success Azure DevOps response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Azure DevOps API error %d: %s", e.StatusCode, e.Message)
}

// adoErrorBody is the API's JSON error envelope.
type adoErrorBody struct {
	Message string `json:"message"`
}

// ClientOptions tune a Client.
type ClientOptions struct {
	HTTPClient *http.Client
}

// Client calls the Azure DevOps REST API for one organization and project.
type Client struct {
	client *resty.Client
	cfg    Config
}

// NewClient creates an Azure DevOps client. The configuration must carry at
// least the organization URL, project and personal access token.
func NewClient(cfg Config, opts ClientOptions) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	client := resty.NewWithClient(httpClient)
	client.SetBaseURL(cfg.OrgURL)
	client.SetBasicAuth("", cfg.PersonalAccessToken)
	client.SetHeader("Accept", "application/json")

	return &Client{client: client, cfg: cfg}, nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.client.NewRequest().
		SetContext(ctx).
		SetQueryParam("api-version", apiVersion).
		SetError(&adoErrorBody{})
}

// apiError maps a non-success response. A rejected PAT does not come back as
// a JSON error; the API answers with a sign-in page, which is why a non-JSON
// body maps to an authentication hint.
func (c *Client) apiError(resp *resty.Response) error {
	status := resp.StatusCode()

	if body, ok := resp.Error().(*adoErrorBody); ok && body.Message != "" {
		return &APIError{StatusCode: status, Message: body.Message}
	}

	if status == http.StatusUnauthorized ||
		!strings.Contains(resp.Header().Get("Content-Type"), "application/json") {
		return authError(status)
	}
	return &APIError{StatusCode: status, Message: http.StatusText(status)}
}

func authError(status int) error {
	return &APIError{
		StatusCode: status,
		Message:    "authentication failed: check the personal access token and its scopes",
	}
}

// checkSignInRedirect catches the API's odd rejected-credential shape: a 203
// carrying the HTML sign-in page, which would otherwise pass as success.
func checkSignInRedirect(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusNonAuthoritativeInfo {
		return authError(resp.StatusCode())
	}
	return nil
}

// FetchWorkItem retrieves one work item by id.
func (c *Client) FetchWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	if id <= 0 {
		return nil, fmt.Errorf("work item id must be positive, got %d", id)
	}

	var result workItemResponse
	resp, err := c.request(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/%s/_apis/wit/workitems/%d", url.PathEscape(c.cfg.Project), id))
	if err != nil {
		return nil, fmt.Errorf("fetching work item %d: %w", id, err)
	}
	if err := checkSignInRedirect(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, &APIError{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("work item %d not found in project %s", id, c.cfg.Project),
		}
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	return result.toWorkItem(), nil
}

// CreatePullRequest creates a pull request in the given repository, or in
// the configured default repository when repositoryID is empty.
func (c *Client) CreatePullRequest(ctx context.Context, pr NewPullRequest, repositoryID string) (*PullRequest, error) {
	if pr.Title == "" {
		return nil, fmt.Errorf("pull request title cannot be empty")
	}
	if pr.SourceBranch == "" || pr.TargetBranch == "" {
		return nil, fmt.Errorf("pull request needs both a source and a target branch")
	}
	repo := repositoryID
	if repo == "" {
		repo = c.cfg.Repository
	}
	if repo == "" {
		return nil, fmt.Errorf("no repository given and none configured")
	}

	body := map[string]any{
		"sourceRefName": refName(pr.SourceBranch),
		"targetRefName": refName(pr.TargetBranch),
		"title":         pr.Title,
		"description":   pr.Description,
	}
	if pr.WorkItemID > 0 {
		body["workItemRefs"] = []map[string]string{{"id": strconv.Itoa(pr.WorkItemID)}}
	}

	var result PullRequest
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf("/%s/_apis/git/repositories/%s/pullrequests",
			url.PathEscape(c.cfg.Project), url.PathEscape(repo)))
	if err != nil {
		return nil, fmt.Errorf("creating pull request: %w", err)
	}
	if err := checkSignInRedirect(resp); err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	return &result, nil
}

// refName qualifies a short branch name as a full ref.
func refName(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}
