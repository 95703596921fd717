package store

import (
	"context"
	"fmt"

	"github.com/reportsync/pkg/models"
)

// HasCommit reports whether a commit SHA is already recorded for an issue
func (s *Store) HasCommit(ctx context.Context, issueID int64, sha string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tracker_commits WHERE issue_id = $1 AND sha = $2)`,
		issueID, sha,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check commit: %w", err)
	}
	return exists, nil
}

// InsertCommit records a referenced commit. The (issue, SHA) unique
// constraint is the dedup key: a SHA seen in an earlier pass is not inserted
// again, and the return value tells the caller whether to announce it.
func (s *Store) InsertCommit(ctx context.Context, commit *models.TrackerCommit) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tracker_commits (issue_id, sha, message, url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (issue_id, sha) DO NOTHING`,
		commit.IssueID, commit.SHA, commit.Message, commit.URL,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert commit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CommitsForIssue returns every commit recorded for an issue in insertion order
func (s *Store) CommitsForIssue(ctx context.Context, issueID int64) ([]models.TrackerCommit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, issue_id, sha, message, url, created_at
		 FROM tracker_commits WHERE issue_id = $1 ORDER BY id`,
		issueID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits: %w", err)
	}
	defer rows.Close()

	var commits []models.TrackerCommit
	for rows.Next() {
		var c models.TrackerCommit
		if err := rows.Scan(&c.ID, &c.IssueID, &c.SHA, &c.Message, &c.URL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commits: %w", err)
	}
	return commits, nil
}
