package models

import (
	"time"
)

// Correlation models linking chat reports to tracker issues

// UnknownAuthor is persisted as the author ID when a report's author cannot
// be resolved. Unknown authors are never mentioned in notifications.
const UnknownAuthor = "unknown"

// Kind classifies a report as a bug or a feature request
type Kind string

const (
	KindBug     Kind = "bug"
	KindFeature Kind = "feature"
)

// Valid reports whether k is a known report kind
func (k Kind) Valid() bool {
	return k == KindBug || k == KindFeature
}

// Label returns the tracker label applied to issues of this kind
func (k Kind) Label() string {
	if k == KindBug {
		return "bug"
	}
	return "enhancement"
}

// TitlePrefix returns the issue title prefix for this kind
func (k Kind) TitlePrefix() string {
	if k == KindBug {
		return "Bug"
	}
	return "Feature"
}

// ReportMessage is the chat message that initiated a report. It is written
// only when a report is confirmed into an issue, so abandoned cards leave no
// row behind.
type ReportMessage struct {
	ID            int64     `json:"id" db:"id"`
	MessageID     string    `json:"message_id" db:"message_id"`
	CardMessageID string    `json:"card_message_id" db:"card_message_id"`
	ChannelID     string    `json:"channel_id" db:"channel_id"`
	AuthorID      string    `json:"author_id" db:"author_id"`
	AuthorName    string    `json:"author_name" db:"author_name"`
	Content       string    `json:"content" db:"content"`
	Kind          Kind      `json:"kind" db:"kind"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TrackerIssue is the tracker-side issue created for a report. Closed only
// ever transitions false to true.
type TrackerIssue struct {
	ID        int64     `json:"id" db:"id"`
	ReportID  int64     `json:"report_id" db:"report_id"`
	Owner     string    `json:"owner" db:"owner"`
	Repo      string    `json:"repo" db:"repo"`
	Number    int       `json:"number" db:"number"`
	Title     string    `json:"title" db:"title"`
	URL       string    `json:"url" db:"url"`
	Labels    []string  `json:"labels" db:"labels"`
	Closed    bool      `json:"closed" db:"closed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TrackerCommit records one commit referenced against an issue, deduplicated
// by (issue, SHA). Rows are append-only.
type TrackerCommit struct {
	ID        int64     `json:"id" db:"id"`
	IssueID   int64     `json:"issue_id" db:"issue_id"`
	SHA       string    `json:"sha" db:"sha"`
	Message   string    `json:"message" db:"message"`
	URL       string    `json:"url" db:"url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ShortSHA returns the 7-character abbreviation used in notifications
func (c TrackerCommit) ShortSHA() string {
	if len(c.SHA) <= 7 {
		return c.SHA
	}
	return c.SHA[:7]
}

// DiscussionThread is the chat thread spawned for a report
type DiscussionThread struct {
	ID       int64  `json:"id" db:"id"`
	ReportID int64  `json:"report_id" db:"report_id"`
	ThreadID string `json:"thread_id" db:"thread_id"`
	Name     string `json:"name" db:"name"`
	Archived bool   `json:"archived" db:"archived"`
}
