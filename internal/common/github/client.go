package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "app-deployer/internal/common/http"
)

var (
	ErrNotFound      = errors.New("github: not found")
	ErrAlreadyExists = errors.New("github: already exists")
)

// APIError is a non-success response from the REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GitHub API error %d: %s", e.StatusCode, e.Body)
}

// Repository is the subset of repository metadata the deployer uses.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type createRepositoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

type pagesRequest struct {
	Source pagesSource `json:"source"`
}

type pagesSource struct {
	Branch string `json:"branch"`
	Path   string `json:"path"`
}

// Client is a bearer-token GitHub REST client.
type Client struct {
	baseURL string
	http    *httpclient.Client
}

// NewClient creates a client against baseURL (https://api.github.com in production).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	hc := httpclient.NewClient(timeout).
		WithBearerToken(token).
		WithHeader("Accept", "application/vnd.github+json").
		WithHeader("X-GitHub-Api-Version", "2022-11-28")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// GetRepository fetches owner/name, returning ErrNotFound on 404.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(name))

	resp, err := c.http.GetJSON(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, name, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("repository %s/%s: %w", owner, name, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var repo Repository
	if err := resp.DecodeJSON(&repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// CreateRepository creates name for the authenticated user, or under org when
// org is non-empty. A 422 response is reported as ErrAlreadyExists.
func (c *Client) CreateRepository(ctx context.Context, org, name, description string, private bool) (*Repository, error) {
	endpoint := c.baseURL + "/user/repos"
	if org != "" {
		endpoint = fmt.Sprintf("%s/orgs/%s/repos", c.baseURL, url.PathEscape(org))
	}

	resp, err := c.http.PostJSON(ctx, endpoint, createRepositoryRequest{
		Name:        name,
		Description: description,
		Private:     private,
	})
	if err != nil {
		return nil, fmt.Errorf("create repository %s: %w", name, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("repository %s: %w", name, ErrAlreadyExists)
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var repo Repository
	if err := resp.DecodeJSON(&repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// EnablePages turns on Pages hosting from branch/path. A 409 means hosting is
// already configured and is reported as ErrAlreadyExists.
func (c *Client) EnablePages(ctx context.Context, fullName, branch, path string) error {
	endpoint := fmt.Sprintf("%s/repos/%s/pages", c.baseURL, fullName)

	resp, err := c.http.PostJSON(ctx, endpoint, pagesRequest{
		Source: pagesSource{Branch: branch, Path: path},
	})
	if err != nil {
		return fmt.Errorf("enable pages for %s: %w", fullName, err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("pages for %s: %w", fullName, ErrAlreadyExists)
	default:
		return &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
}
