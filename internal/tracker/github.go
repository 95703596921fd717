package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.github.com"

// GitHubClient implements Client against the GitHub REST API
type GitHubClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewGitHubClient creates a tracker client for the given personal access
// token. An empty baseURL targets api.github.com. Requests are throttled to
// stay inside GitHub's secondary rate limits; the poller fans out one call
// per open issue per pass.
func NewGitHubClient(baseURL, token string) *GitHubClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GitHubClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (c *GitHubClient) do(ctx context.Context, method, path string, payload, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tracker API error (status %d): %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// CreateIssue files a new issue and returns its number and canonical URL
func (c *GitHubClient) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Issue, error) {
	payload := map[string]interface{}{
		"title":  title,
		"body":   body,
		"labels": labels,
	}
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	if err := c.do(ctx, http.MethodPost, path, payload, &issue); err != nil {
		return nil, fmt.Errorf("failed to create issue in %s/%s: %w", owner, repo, err)
	}
	return &issue, nil
}

type issueResponse struct {
	Issue
	ClosedByUser *struct {
		Login string `json:"login"`
	} `json:"closed_by"`
}

// GetIssue fetches the current state of an issue
func (c *GitHubClient) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	var resp issueResponse
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get issue %s/%s#%d: %w", owner, repo, number, err)
	}
	issue := resp.Issue
	if resp.ClosedByUser != nil {
		issue.ClosedBy = resp.ClosedByUser.Login
	}
	return &issue, nil
}

const eventsPageSize = 100

// ListIssueEvents returns the issue's full event timeline, following
// pagination so commits referenced late in a long timeline are still seen
func (c *GitHubClient) ListIssueEvents(ctx context.Context, owner, repo string, number int) ([]IssueEvent, error) {
	var all []IssueEvent
	for page := 1; ; page++ {
		var events []IssueEvent
		path := fmt.Sprintf("/repos/%s/%s/issues/%d/events?per_page=%d&page=%d", owner, repo, number, eventsPageSize, page)
		if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
			return nil, fmt.Errorf("failed to list events for %s/%s#%d: %w", owner, repo, number, err)
		}
		all = append(all, events...)
		if len(events) < eventsPageSize {
			return all, nil
		}
	}
}

type commitResponse struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
}

// GetCommit fetches the details of a single commit
func (c *GitHubClient) GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error) {
	var resp commitResponse
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, sha)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get commit %s in %s/%s: %w", sha, owner, repo, err)
	}
	return &Commit{
		SHA:     resp.SHA,
		Message: resp.Commit.Message,
		HTMLURL: resp.HTMLURL,
		Author:  resp.Commit.Author.Name,
	}, nil
}

// CreateComment posts a comment on an issue
func (c *GitHubClient) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	payload := map[string]string{"body": body}
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	if err := c.do(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("failed to comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// ListOpenIssues returns up to perPage open issues for a repository.
// Pull requests share the issues endpoint and are filtered out.
func (c *GitHubClient) ListOpenIssues(ctx context.Context, owner, repo string, perPage int) ([]Issue, error) {
	var raw []struct {
		Issue
		PullRequest *struct{} `json:"pull_request"`
	}
	path := fmt.Sprintf("/repos/%s/%s/issues?state=open&per_page=%d", owner, repo, perPage)
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to list open issues for %s/%s: %w", owner, repo, err)
	}
	issues := make([]Issue, 0, len(raw))
	for _, r := range raw {
		if r.PullRequest != nil {
			continue
		}
		issues = append(issues, r.Issue)
	}
	return issues, nil
}
