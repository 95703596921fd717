// Package store is the durable correlation store mapping chat reports to
// tracker issues, their commits, and discussion threads.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides access to the correlation tables
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on top of an existing connection pool
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pgx connection pool and verifies connectivity
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS report_messages (
	id              BIGSERIAL PRIMARY KEY,
	message_id      TEXT NOT NULL UNIQUE,
	card_message_id TEXT NOT NULL UNIQUE,
	channel_id      TEXT NOT NULL,
	author_id       TEXT NOT NULL,
	author_name     TEXT NOT NULL,
	content         TEXT NOT NULL,
	kind            TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tracker_issues (
	id         BIGSERIAL PRIMARY KEY,
	report_id  BIGINT NOT NULL UNIQUE REFERENCES report_messages(id),
	owner      TEXT NOT NULL,
	repo       TEXT NOT NULL,
	number     INTEGER NOT NULL,
	title      TEXT NOT NULL,
	url        TEXT NOT NULL,
	labels     TEXT[] NOT NULL DEFAULT '{}',
	closed     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (owner, repo, number)
);

CREATE TABLE IF NOT EXISTS tracker_commits (
	id         BIGSERIAL PRIMARY KEY,
	issue_id   BIGINT NOT NULL REFERENCES tracker_issues(id),
	sha        TEXT NOT NULL,
	message    TEXT NOT NULL,
	url        TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (issue_id, sha)
);

CREATE TABLE IF NOT EXISTS discussion_threads (
	id        BIGSERIAL PRIMARY KEY,
	report_id BIGINT NOT NULL REFERENCES report_messages(id),
	thread_id TEXT NOT NULL UNIQUE,
	name      TEXT NOT NULL,
	archived  BOOLEAN NOT NULL DEFAULT FALSE
);
`

// Migrate creates the correlation tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Counts summarizes store contents for the status endpoint
type Counts struct {
	OpenIssues   int64 `json:"open_issues"`
	ClosedIssues int64 `json:"closed_issues"`
	Commits      int64 `json:"commits"`
	Threads      int64 `json:"threads"`
}

// Stats returns row counts across the correlation tables
func (s *Store) Stats(ctx context.Context) (Counts, error) {
	var c Counts
	query := `
	SELECT
		(SELECT count(*) FROM tracker_issues WHERE NOT closed),
		(SELECT count(*) FROM tracker_issues WHERE closed),
		(SELECT count(*) FROM tracker_commits),
		(SELECT count(*) FROM discussion_threads)
	`
	err := s.pool.QueryRow(ctx, query).Scan(&c.OpenIssues, &c.ClosedIssues, &c.Commits, &c.Threads)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count store rows: %w", err)
	}
	return c, nil
}
