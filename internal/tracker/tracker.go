// Package tracker talks to the code-hosting issue tracker.
package tracker

import (
	"context"
)

// Issue is the tracker-side view of an issue
type Issue struct {
	Number   int    `json:"number"`
	Title    string `json:"title"`
	State    string `json:"state"`
	HTMLURL  string `json:"html_url"`
	ClosedBy string `json:"-"`
}

// Closed reports whether the issue is closed tracker-side
func (i Issue) Closed() bool {
	return i.State == "closed"
}

// IssueEvent is one entry from an issue's event timeline
type IssueEvent struct {
	Event    string `json:"event"`
	CommitID string `json:"commit_id"`
}

// ReferencesCommit reports whether the event links a commit to the issue
func (e IssueEvent) ReferencesCommit() bool {
	return e.Event == "referenced" && e.CommitID != ""
}

// Commit holds the commit details used in thread notifications
type Commit struct {
	SHA     string
	Message string
	HTMLURL string
	Author  string
}

// FirstLine returns the first line of the commit message
func (c Commit) FirstLine() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

// Client is the issue-tracker operation surface the correlation engine uses
type Client interface {
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error)
	ListIssueEvents(ctx context.Context, owner, repo string, number int) ([]IssueEvent, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*Commit, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	ListOpenIssues(ctx context.Context, owner, repo string, perPage int) ([]Issue, error)
}
