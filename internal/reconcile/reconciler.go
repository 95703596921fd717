// Package reconcile brings chat-side state into eventual agreement with the
// tracker: it detects commit references and closures for every open
// correlated issue and propagates them into the linked discussion threads.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/reportsync/internal/chat"
	"github.com/reportsync/internal/store"
	"github.com/reportsync/internal/tracker"
	"github.com/reportsync/pkg/models"
)

// Store is the slice of the correlation store the poller needs
type Store interface {
	OpenIssues(ctx context.Context) ([]store.OpenIssue, error)
	MarkIssueClosed(ctx context.Context, issueID int64) (bool, error)
	HasCommit(ctx context.Context, issueID int64, sha string) (bool, error)
	InsertCommit(ctx context.Context, commit *models.TrackerCommit) (bool, error)
	CommitsForIssue(ctx context.Context, issueID int64) ([]models.TrackerCommit, error)
	RenameThread(ctx context.Context, threadID, name string) error
	MarkThreadArchived(ctx context.Context, threadID string) error
}

// Tracker is the slice of the tracker client the poller needs
type Tracker interface {
	GetIssue(ctx context.Context, owner, repo string, number int) (*tracker.Issue, error)
	ListIssueEvents(ctx context.Context, owner, repo string, number int) ([]tracker.IssueEvent, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*tracker.Commit, error)
}

// Reconciler runs one reconciliation pass over every open correlated issue
type Reconciler struct {
	store     Store
	tracker   Tracker
	messenger chat.Messenger
}

// New wires a reconciler
func New(store Store, tracker Tracker, messenger chat.Messenger) *Reconciler {
	return &Reconciler{store: store, tracker: tracker, messenger: messenger}
}

// RunPass processes every open issue once. A failure on one issue is logged
// and does not stop the rest of the pass.
func (r *Reconciler) RunPass(ctx context.Context) error {
	passID := uuid.NewString()

	open, err := r.store.OpenIssues(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open issues: %w", err)
	}
	if len(open) == 0 {
		return nil
	}

	log.Debug().Str("pass", passID).Int("open_issues", len(open)).Msg("Reconciliation pass started")

	for _, issue := range open {
		if err := r.reconcileIssue(ctx, issue); err != nil {
			log.Error().Err(err).
				Str("pass", passID).
				Str("repo", issue.Repo).
				Int("issue", issue.Number).
				Msg("Failed to reconcile issue")
		}
	}

	return nil
}

// reconcileIssue syncs one issue. Commit detection always runs before
// closure handling so a closure notification can include commits discovered
// in the same pass.
func (r *Reconciler) reconcileIssue(ctx context.Context, oi store.OpenIssue) error {
	if err := r.syncCommits(ctx, &oi); err != nil {
		return err
	}

	current, err := r.tracker.GetIssue(ctx, oi.Owner, oi.Repo, oi.Number)
	if err != nil {
		return err
	}
	if !current.Closed() {
		return nil
	}

	flipped, err := r.store.MarkIssueClosed(ctx, oi.ID)
	if err != nil {
		return err
	}
	if !flipped {
		// Another pass already handled the closure; never notify twice.
		return nil
	}

	return r.announceClosure(ctx, oi, current)
}

// syncCommits persists and announces commits referenced against the issue
// that the store has not seen yet
func (r *Reconciler) syncCommits(ctx context.Context, oi *store.OpenIssue) error {
	events, err := r.tracker.ListIssueEvents(ctx, oi.Owner, oi.Repo, oi.Number)
	if err != nil {
		return err
	}

	for _, event := range events {
		if !event.ReferencesCommit() {
			continue
		}

		seen, err := r.store.HasCommit(ctx, oi.ID, event.CommitID)
		if err != nil {
			return err
		}
		if seen {
			continue
		}

		details, err := r.tracker.GetCommit(ctx, oi.Owner, oi.Repo, event.CommitID)
		if err != nil {
			return err
		}

		commit := &models.TrackerCommit{
			IssueID: oi.ID,
			SHA:     details.SHA,
			Message: details.FirstLine(),
			URL:     details.HTMLURL,
		}
		inserted, err := r.store.InsertCommit(ctx, commit)
		if err != nil {
			return err
		}
		if !inserted {
			// Raced with a concurrent insert; the SHA is already announced.
			continue
		}

		r.announceCommit(ctx, oi, commit, details.Author)
	}

	return nil
}

func (r *Reconciler) announceCommit(ctx context.Context, oi *store.OpenIssue, commit *models.TrackerCommit, author string) {
	line := fmt.Sprintf("- [%s](%s): %s", commit.ShortSHA(), commit.URL, commit.Message)
	if author != "" {
		line += fmt.Sprintf(" (by %s)", author)
	}
	content := fmt.Sprintf("⛏ New commit linked to issue #%d:\n%s", oi.Number, line)

	count, err := r.commitCount(ctx, oi.ID)
	if err != nil {
		log.Warn().Err(err).Int64("issue_id", oi.ID).Msg("Failed to count commits for thread rename")
	}

	for i := range oi.Threads {
		thread := &oi.Threads[i]
		if err := r.messenger.Send(ctx, thread.ThreadID, content); err != nil {
			log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to announce commit in thread")
		}
		if count > 0 {
			name := withCommitSuffix(thread.Name, count)
			if name != thread.Name {
				if err := r.messenger.RenameThread(ctx, thread.ThreadID, name); err != nil {
					log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to rename thread")
				} else if err := r.store.RenameThread(ctx, thread.ThreadID, name); err != nil {
					log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to persist thread name")
				} else {
					thread.Name = name
				}
			}
		}
	}

	log.Info().
		Str("repo", oi.Repo).
		Int("issue", oi.Number).
		Str("sha", commit.ShortSHA()).
		Msg("New referenced commit recorded")
}

func (r *Reconciler) commitCount(ctx context.Context, issueID int64) (int, error) {
	commits, err := r.store.CommitsForIssue(ctx, issueID)
	if err != nil {
		return 0, err
	}
	return len(commits), nil
}

func (r *Reconciler) announceClosure(ctx context.Context, oi store.OpenIssue, current *tracker.Issue) error {
	commits, err := r.store.CommitsForIssue(ctx, oi.ID)
	if err != nil {
		return err
	}

	closedBy := current.ClosedBy
	if closedBy == "" {
		closedBy = "unknown"
	}

	var commitText string
	if len(commits) > 0 {
		lines := make([]string, 0, len(commits))
		for _, c := range commits {
			lines = append(lines, fmt.Sprintf("- [%s](%s): %s", c.ShortSHA(), c.URL, c.Message))
		}
		commitText = "\n\n**Linked commits:**\n" + strings.Join(lines, "\n")
	}

	mention := ""
	if oi.AuthorID != "" && oi.AuthorID != models.UnknownAuthor {
		mention = " " + chat.Mention(oi.AuthorID)
	}
	content := fmt.Sprintf("🛑 Issue #%d has been closed by @%s.%s%s",
		oi.Number, closedBy, mention, commitText)

	for _, thread := range oi.Threads {
		if err := r.messenger.Send(ctx, thread.ThreadID, content); err != nil {
			log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to announce closure in thread")
		}
		if err := r.messenger.ArchiveThread(ctx, thread.ThreadID); err != nil {
			log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to archive thread")
		} else if err := r.store.MarkThreadArchived(ctx, thread.ThreadID); err != nil {
			log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to persist thread archive")
		}
	}

	log.Info().
		Str("repo", oi.Repo).
		Int("issue", oi.Number).
		Str("closed_by", closedBy).
		Msg("Issue closed; threads notified")

	return nil
}

// withCommitSuffix appends or refreshes the commit-count marker on a thread name
func withCommitSuffix(name string, count int) string {
	const marker = " · ⛏ "
	if idx := strings.Index(name, marker); idx >= 0 {
		name = name[:idx]
	}
	return fmt.Sprintf("%s%s%d", name, marker, count)
}
