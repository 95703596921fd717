package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/reportsync/pkg/models"
)

// ErrAlreadyLinked is returned when a correlation already exists for the card
var ErrAlreadyLinked = errors.New("report card is already linked to an issue")

// CreateCorrelation persists a report, its tracker issue, and (when known)
// its discussion thread in one transaction. The unique constraint on the
// card message ID makes re-confirming a linked card fail with
// ErrAlreadyLinked instead of filing a second issue.
func (s *Store) CreateCorrelation(ctx context.Context, report *models.ReportMessage, issue *models.TrackerIssue, thread *models.DiscussionThread) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertReport := `
	INSERT INTO report_messages (message_id, card_message_id, channel_id, author_id, author_name, content, kind)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (card_message_id) DO NOTHING
	RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, insertReport,
		report.MessageID, report.CardMessageID, report.ChannelID,
		report.AuthorID, report.AuthorName, report.Content, report.Kind,
	).Scan(&report.ID, &report.CreatedAt)
	if err == pgx.ErrNoRows {
		return ErrAlreadyLinked
	}
	if err != nil {
		return fmt.Errorf("failed to insert report message: %w", err)
	}

	insertIssue := `
	INSERT INTO tracker_issues (report_id, owner, repo, number, title, url, labels)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at, updated_at
	`
	issue.ReportID = report.ID
	err = tx.QueryRow(ctx, insertIssue,
		issue.ReportID, issue.Owner, issue.Repo, issue.Number,
		issue.Title, issue.URL, issue.Labels,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tracker issue: %w", err)
	}

	if thread != nil {
		insertThread := `
		INSERT INTO discussion_threads (report_id, thread_id, name)
		VALUES ($1, $2, $3)
		RETURNING id
		`
		thread.ReportID = report.ID
		if err := tx.QueryRow(ctx, insertThread, thread.ReportID, thread.ThreadID, thread.Name).Scan(&thread.ID); err != nil {
			return fmt.Errorf("failed to insert discussion thread: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit correlation: %w", err)
	}

	return nil
}

const issueColumns = `id, report_id, owner, repo, number, title, url, labels, closed, created_at, updated_at`

func scanIssue(row pgx.Row) (*models.TrackerIssue, error) {
	var issue models.TrackerIssue
	err := row.Scan(
		&issue.ID, &issue.ReportID, &issue.Owner, &issue.Repo, &issue.Number,
		&issue.Title, &issue.URL, &issue.Labels, &issue.Closed,
		&issue.CreatedAt, &issue.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// IssueByCardMessage finds the issue linked through a report card, or nil
// when the card was never confirmed
func (s *Store) IssueByCardMessage(ctx context.Context, cardMessageID string) (*models.TrackerIssue, error) {
	query := `
	SELECT ` + issueColumns + `
	FROM tracker_issues
	WHERE report_id = (SELECT id FROM report_messages WHERE card_message_id = $1)
	`
	issue, err := scanIssue(s.pool.QueryRow(ctx, query, cardMessageID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue by card message: %w", err)
	}
	return issue, nil
}

// IssueByThread finds the issue linked to a discussion thread, or nil when
// the thread is not a correlated one. Display names are never consulted;
// the store is the source of truth for the thread-issue link.
func (s *Store) IssueByThread(ctx context.Context, threadID string) (*models.TrackerIssue, error) {
	query := `
	SELECT ` + issueColumns + `
	FROM tracker_issues
	WHERE report_id = (SELECT report_id FROM discussion_threads WHERE thread_id = $1)
	`
	issue, err := scanIssue(s.pool.QueryRow(ctx, query, threadID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue by thread: %w", err)
	}
	return issue, nil
}

// OpenIssue is an open tracker issue with the context the poller needs
type OpenIssue struct {
	models.TrackerIssue
	AuthorID string
	Threads  []models.DiscussionThread
}

// OpenIssues returns every issue still marked open, with report author and
// linked threads attached
func (s *Store) OpenIssues(ctx context.Context) ([]OpenIssue, error) {
	query := `
	SELECT i.id, i.report_id, i.owner, i.repo, i.number, i.title, i.url, i.labels,
	       i.closed, i.created_at, i.updated_at, r.author_id
	FROM tracker_issues i
	JOIN report_messages r ON r.id = i.report_id
	WHERE NOT i.closed
	ORDER BY i.id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open issues: %w", err)
	}
	defer rows.Close()

	var issues []OpenIssue
	for rows.Next() {
		var oi OpenIssue
		err := rows.Scan(
			&oi.ID, &oi.ReportID, &oi.Owner, &oi.Repo, &oi.Number,
			&oi.Title, &oi.URL, &oi.Labels, &oi.Closed,
			&oi.CreatedAt, &oi.UpdatedAt, &oi.AuthorID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan open issue: %w", err)
		}
		issues = append(issues, oi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read open issues: %w", err)
	}

	for i := range issues {
		threads, err := s.ThreadsForIssue(ctx, issues[i].ID)
		if err != nil {
			return nil, err
		}
		issues[i].Threads = threads
	}

	return issues, nil
}

// MarkIssueClosed flips the closed flag open to closed. The conditional
// update makes the transition safe against a concurrent pass: only the
// caller that actually flipped the flag sees true.
func (s *Store) MarkIssueClosed(ctx context.Context, issueID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tracker_issues SET closed = TRUE, updated_at = now() WHERE id = $1 AND NOT closed`,
		issueID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark issue closed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
