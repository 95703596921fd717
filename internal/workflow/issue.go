package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reportsync/internal/chat"
	"github.com/reportsync/pkg/models"
)

// IssueWorkflow drives the new-issue state machine: create pressed →
// repository picked → confirmed → issue filed and correlation persisted.
type IssueWorkflow struct {
	store     Store
	tracker   Tracker
	messenger chat.Messenger
	cfg       Config
}

// NewIssueWorkflow wires the new-issue workflow
func NewIssueWorkflow(store Store, tracker Tracker, messenger chat.Messenger, cfg Config) *IssueWorkflow {
	return &IssueWorkflow{store: store, tracker: tracker, messenger: messenger, cfg: cfg}
}

// PickRepository answers a create-issue press with the repository picker.
// The response is ephemeral; the card itself is untouched.
func (w *IssueWorkflow) PickRepository(ctx context.Context, it *chat.Interaction, action Action) {
	options := make([]chat.SelectOption, 0, len(w.cfg.Repos))
	for _, repo := range w.cfg.Repos {
		options = append(options, chat.SelectOption{Label: repo, Value: repo})
	}

	content := fmt.Sprintf("Please select a repository for your %s issue:", action.ReportKind)
	token := EncodeRepoSelect(action.ReportKind, action.CardID)
	if err := it.Responder.Select(content, token, "Select a repository", options); err != nil {
		log.Error().Err(err).Str("card", action.CardID).Msg("Failed to present repository picker")
	}
}

// ConfirmPrompt answers a repository selection with the confirm button
func (w *IssueWorkflow) ConfirmPrompt(ctx context.Context, it *chat.Interaction, action Action) {
	if len(it.Values) == 0 {
		return
	}
	repo := it.Values[0]
	if !w.allowedRepo(repo) {
		log.Warn().Str("repo", repo).Msg("Selected repository is not on the allow-list")
		return
	}

	content := fmt.Sprintf("You selected **%s**. Confirm to create the %s issue.", repo, action.ReportKind)
	confirm := chat.Control{
		Token: EncodeConfirm(action.ReportKind, repo, action.CardID),
		Label: "✅ Confirm Issue Creation",
		Style: chat.StyleSuccess,
	}
	if err := it.Responder.Update(content, confirm); err != nil {
		log.Error().Err(err).Str("card", action.CardID).Msg("Failed to present confirm button")
	}
}

// Confirm executes the terminal transition: file the tracker issue, persist
// the correlation, disable the card, and announce in the discussion thread.
func (w *IssueWorkflow) Confirm(ctx context.Context, it *chat.Interaction, action Action) {
	if !w.allowedRepo(action.Repo) {
		log.Warn().Str("repo", action.Repo).Msg("Confirm token names a repository outside the allow-list")
		return
	}

	// Re-confirm guard: a card that is already linked must never file a
	// second issue, even when two confirms race past the disabled controls.
	if existing, err := w.store.IssueByCardMessage(ctx, action.CardID); err != nil {
		log.Error().Err(err).Str("card", action.CardID).Msg("Failed to check existing correlation")
		return
	} else if existing != nil {
		it.Responder.Update(fmt.Sprintf("This report is already linked to an issue: %s", existing.URL))
		return
	}

	// The rendered card, not process memory, is the source of truth for the
	// report content between interaction steps.
	card, err := w.messenger.FetchMessage(ctx, it.ChannelID, action.CardID)
	if err != nil {
		log.Error().Err(err).Str("card", action.CardID).Msg("Failed to fetch report card")
		return
	}
	content := card.EmbedBody
	authorName := card.EmbedAuthor
	if authorName == "" {
		authorName = models.UnknownAuthor
	}

	original, originalURL := w.resolveOriginal(ctx, card)
	authorID := w.resolveAuthorID(ctx, it.GuildID, original, authorName)

	title := DeriveTitle(action.ReportKind, content)
	body := fmt.Sprintf("**Reported by:** %s\n\n%s\n\n---\n[View original report on Discord](%s)", authorName, content, originalURL)

	issue, err := w.tracker.CreateIssue(ctx, w.cfg.Owner, action.Repo, title, body, []string{action.ReportKind.Label()})
	if err != nil {
		log.Error().Err(err).Str("repo", action.Repo).Str("card", action.CardID).Msg("Failed to create tracker issue")
		return
	}

	report := &models.ReportMessage{
		MessageID:     card.ReferencedID,
		CardMessageID: card.ID,
		ChannelID:     card.ChannelID,
		AuthorID:      authorID,
		AuthorName:    authorName,
		Content:       content,
		Kind:          action.ReportKind,
	}
	if report.MessageID == "" {
		report.MessageID = card.ID
	}
	trackerIssue := &models.TrackerIssue{
		Owner:  w.cfg.Owner,
		Repo:   action.Repo,
		Number: issue.Number,
		Title:  title,
		URL:    issue.HTMLURL,
		Labels: []string{action.ReportKind.Label()},
	}

	var thread *models.DiscussionThread
	if card.ThreadID != "" {
		thread = &models.DiscussionThread{
			ThreadID: card.ThreadID,
			Name:     fmt.Sprintf("Discussion: %s's Report · #%d", authorName, issue.Number),
		}
	}

	if err := w.store.CreateCorrelation(ctx, report, trackerIssue, thread); err != nil {
		// The tracker-side issue exists either way; there is no compensating
		// delete, so the inconsistency is logged rather than rolled back.
		log.Error().Err(err).
			Str("card", action.CardID).
			Int("issue", issue.Number).
			Msg("Issue created but correlation not persisted")
		return
	}

	w.finishCard(ctx, it, card, action, issue.HTMLURL)

	if thread != nil {
		if err := w.messenger.RenameThread(ctx, thread.ThreadID, thread.Name); err != nil {
			log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to rename discussion thread")
		}
		announcement := fmt.Sprintf("📌 Issue #%d has been created for this report: %s %s",
			issue.Number, issue.HTMLURL, chat.Mention(authorID))
		if authorID == models.UnknownAuthor {
			announcement = fmt.Sprintf("📌 Issue #%d has been created for this report: %s", issue.Number, issue.HTMLURL)
		}
		if err := w.messenger.Send(ctx, thread.ThreadID, announcement); err != nil {
			log.Warn().Err(err).Str("thread", thread.ThreadID).Msg("Failed to announce issue in thread")
		}
	}

	log.Info().
		Str("repo", action.Repo).
		Int("issue", issue.Number).
		Str("kind", string(action.ReportKind)).
		Msg("Report linked to tracker issue")
}

// resolveOriginal fetches the message the card replied to. The card body is
// still authoritative for content; the original only contributes the author
// ID and the canonical link.
func (w *IssueWorkflow) resolveOriginal(ctx context.Context, card *chat.Message) (*chat.Message, string) {
	if card.ReferencedID == "" {
		return nil, card.URL
	}
	original, err := w.messenger.FetchMessage(ctx, card.ChannelID, card.ReferencedID)
	if err != nil {
		log.Warn().Err(err).Str("message", card.ReferencedID).Msg("Failed to fetch original report message")
		return nil, card.URL
	}
	return original, original.URL
}

func (w *IssueWorkflow) resolveAuthorID(ctx context.Context, guildID string, original *chat.Message, authorName string) string {
	if original != nil && original.AuthorID != "" {
		return original.AuthorID
	}
	if guildID == "" {
		guildID = w.cfg.GuildID
	}
	id, err := w.messenger.MemberIDByName(ctx, guildID, authorName)
	if err != nil {
		log.Warn().Err(err).Str("author", authorName).Msg("Failed to resolve author by name")
		return models.UnknownAuthor
	}
	if id == "" {
		return models.UnknownAuthor
	}
	return id
}

// finishCard disables the card's controls and links the created issue
func (w *IssueWorkflow) finishCard(ctx context.Context, it *chat.Interaction, card *chat.Message, action Action, issueURL string) {
	terminal := &chat.Card{
		Title:      card.EmbedTitle,
		Body:       card.EmbedBody,
		AuthorName: card.EmbedAuthor,
		AuthorIcon: card.EmbedAuthorIcon,
		Timestamp:  time.Now(),
		Color:      chat.ColorSuccess,
		Fields: []chat.Field{{
			Name:  "✅ Linked Issue",
			Value: fmt.Sprintf("[View on the tracker](%s)", issueURL),
		}},
		Controls: []chat.Control{
			{Token: EncodeCreate(models.KindBug, card.ID), Label: "🐞 Create Bug Issue", Style: chat.StyleDanger, Disabled: true},
			{Token: EncodeCreate(models.KindFeature, card.ID), Label: "✨ Create Feature Issue", Style: chat.StylePrimary, Disabled: true},
		},
	}
	if err := w.messenger.Edit(ctx, card.ChannelID, card.ID, terminal); err != nil {
		log.Warn().Err(err).Str("card", card.ID).Msg("Failed to disable report card")
	}

	content := fmt.Sprintf("✅ %s issue created successfully for **%s**!\n[🔗 View issue](%s)",
		action.ReportKind.TitlePrefix(), action.Repo, issueURL)
	if err := it.Responder.Update(content); err != nil {
		log.Warn().Err(err).Str("card", card.ID).Msg("Failed to acknowledge confirm")
	}
}

func (w *IssueWorkflow) allowedRepo(repo string) bool {
	for _, r := range w.cfg.Repos {
		if r == repo {
			return true
		}
	}
	return false
}
