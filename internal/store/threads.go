package store

import (
	"context"
	"fmt"

	"github.com/reportsync/pkg/models"
)

// ThreadsForIssue returns the discussion threads linked to an issue's report
func (s *Store) ThreadsForIssue(ctx context.Context, issueID int64) ([]models.DiscussionThread, error) {
	query := `
	SELECT t.id, t.report_id, t.thread_id, t.name, t.archived
	FROM discussion_threads t
	JOIN tracker_issues i ON i.report_id = t.report_id
	WHERE i.id = $1
	ORDER BY t.id
	`
	rows, err := s.pool.Query(ctx, query, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []models.DiscussionThread
	for rows.Next() {
		var t models.DiscussionThread
		if err := rows.Scan(&t.ID, &t.ReportID, &t.ThreadID, &t.Name, &t.Archived); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read threads: %w", err)
	}
	return threads, nil
}

// RenameThread updates a thread's stored display name
func (s *Store) RenameThread(ctx context.Context, threadID, name string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE discussion_threads SET name = $2 WHERE thread_id = $1`,
		threadID, name,
	)
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}
	return nil
}

// MarkThreadArchived records that a thread has been archived chat-side
func (s *Store) MarkThreadArchived(ctx context.Context, threadID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE discussion_threads SET archived = TRUE WHERE thread_id = $1`,
		threadID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark thread archived: %w", err)
	}
	return nil
}
