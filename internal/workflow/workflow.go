// Package workflow implements the token-driven interaction workflows that
// turn chat reports into tracker issues or comments on existing ones.
package workflow

import (
	"context"
	"strings"

	"github.com/reportsync/internal/tracker"
	"github.com/reportsync/pkg/models"
)

// Store is the slice of the correlation store the workflows need
type Store interface {
	CreateCorrelation(ctx context.Context, report *models.ReportMessage, issue *models.TrackerIssue, thread *models.DiscussionThread) error
	IssueByCardMessage(ctx context.Context, cardMessageID string) (*models.TrackerIssue, error)
	IssueByThread(ctx context.Context, threadID string) (*models.TrackerIssue, error)
}

// Tracker is the slice of the tracker client the workflows need
type Tracker interface {
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*tracker.Issue, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	ListOpenIssues(ctx context.Context, owner, repo string, perPage int) ([]tracker.Issue, error)
}

// Config scopes the workflows to one tracker owner and its allow-listed
// target repositories
type Config struct {
	Owner   string
	Repos   []string
	GuildID string
}

const titleWordLimit = 10

// DeriveTitle builds an issue title from the first words of the report body,
// prefixed by the report kind
func DeriveTitle(kind models.Kind, content string) string {
	words := strings.Fields(content)
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	summary := strings.Join(words, " ")
	if summary == "" {
		summary = "(no description)"
	}
	return kind.TitlePrefix() + ": " + summary
}
