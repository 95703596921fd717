package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/reportsync/internal/chat"
)

// openIssueLimit caps the selection list presented for the comment flow
const openIssueLimit = 20

// CommentWorkflow is the existing-issue path: a context action on a chat
// message ends with that message posted as a comment on a tracker issue.
type CommentWorkflow struct {
	store     Store
	tracker   Tracker
	messenger chat.Messenger
	cfg       Config
}

// NewCommentWorkflow wires the existing-issue workflow
func NewCommentWorkflow(store Store, tracker Tracker, messenger chat.Messenger, cfg Config) *CommentWorkflow {
	return &CommentWorkflow{store: store, tracker: tracker, messenger: messenger, cfg: cfg}
}

// Start handles the context-menu invocation on a message. When the message
// lives in a thread the store already links to an issue, the comment target
// is known; otherwise the user picks from the open issues.
func (c *CommentWorkflow) Start(ctx context.Context, it *chat.Interaction) {
	if it.TargetMessage == nil {
		log.Warn().Msg("Context command without a resolved target message")
		return
	}

	// The containing channel is the thread when invoked inside one. The
	// linked issue comes from the store, never from the thread's display name.
	issue, err := c.store.IssueByThread(ctx, it.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("thread", it.ChannelID).Msg("Failed to look up thread correlation")
		return
	}
	if issue != nil {
		content := fmt.Sprintf("This thread is linked to issue #%d. Add this message as a comment?", issue.Number)
		control := chat.Control{
			Token: EncodeCommentExisting(issue.Repo, issue.Number, it.TargetMessage.ID),
			Label: "💬 Add comment",
			Style: chat.StylePrimary,
		}
		if err := it.Responder.Ephemeral(content, control); err != nil {
			log.Error().Err(err).Msg("Failed to offer direct comment control")
		}
		return
	}

	options := c.openIssueOptions(ctx)
	if len(options) == 0 {
		it.Responder.Ephemeral("No open issues found to comment on.")
		return
	}

	token := EncodeSelectExisting(it.TargetMessage.ID)
	if err := it.Responder.Select("Select the issue to comment on:", token, "Select an issue", options); err != nil {
		log.Error().Err(err).Msg("Failed to present open-issue picker")
	}
}

func (c *CommentWorkflow) openIssueOptions(ctx context.Context) []chat.SelectOption {
	var options []chat.SelectOption
	for _, repo := range c.cfg.Repos {
		if len(options) >= openIssueLimit {
			break
		}
		issues, err := c.tracker.ListOpenIssues(ctx, c.cfg.Owner, repo, openIssueLimit-len(options))
		if err != nil {
			log.Error().Err(err).Str("repo", repo).Msg("Failed to list open issues")
			continue
		}
		for _, issue := range issues {
			if len(options) >= openIssueLimit {
				break
			}
			options = append(options, chat.SelectOption{
				Label: truncateLabel(fmt.Sprintf("#%d %s (%s)", issue.Number, issue.Title, repo)),
				Value: repo + ":" + strconv.Itoa(issue.Number),
			})
		}
	}
	return options
}

// PickIssue handles the selection of an open issue and offers the confirm
// control bound to it
func (c *CommentWorkflow) PickIssue(ctx context.Context, it *chat.Interaction, action Action) {
	if len(it.Values) == 0 {
		return
	}
	repo, number, ok := parseIssueValue(it.Values[0])
	if !ok {
		log.Warn().Str("value", it.Values[0]).Msg("Malformed issue selection value")
		return
	}

	content := fmt.Sprintf("Add the message as a comment on **%s#%d**?", repo, number)
	control := chat.Control{
		Token: EncodeCommentExisting(repo, number, action.MessageID),
		Label: "💬 Add comment",
		Style: chat.StyleSuccess,
	}
	if err := it.Responder.Update(content, control); err != nil {
		log.Error().Err(err).Msg("Failed to present comment confirm")
	}
}

// Post confirms the flow: the chat message's text becomes a tracker comment
func (c *CommentWorkflow) Post(ctx context.Context, it *chat.Interaction, action Action) {
	repo := action.Repo
	if repo == "" {
		// First-generation tokens carried no repository field.
		if len(c.cfg.Repos) == 0 {
			return
		}
		repo = c.cfg.Repos[0]
	}

	msg, err := c.messenger.FetchMessage(ctx, it.ChannelID, action.MessageID)
	if err != nil {
		log.Error().Err(err).Str("message", action.MessageID).Msg("Failed to fetch message for comment")
		it.Responder.Update(fmt.Sprintf("⚠️ Could not add the comment to issue #%d. Please try again.", action.IssueNumber))
		return
	}

	text := msg.Text()
	if text == "" {
		text = "(no content)"
	}
	body := fmt.Sprintf("**From %s on Discord:**\n\n%s", msg.AuthorName, text)
	if msg.URL != "" {
		body += fmt.Sprintf("\n\n---\n[View original message](%s)", msg.URL)
	}

	if err := c.tracker.CreateComment(ctx, c.cfg.Owner, repo, action.IssueNumber, body); err != nil {
		log.Error().Err(err).
			Str("repo", repo).
			Int("issue", action.IssueNumber).
			Msg("Failed to post tracker comment")
		it.Responder.Update(fmt.Sprintf("⚠️ Could not add the comment to issue #%d. Please try again.", action.IssueNumber))
		return
	}

	it.Responder.Update(fmt.Sprintf("✅ Comment added to issue #%d.", action.IssueNumber))
	log.Info().Str("repo", repo).Int("issue", action.IssueNumber).Msg("Message posted as issue comment")
}

func parseIssueValue(value string) (string, int, bool) {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 {
		return "", 0, false
	}
	number, err := strconv.Atoi(value[idx+1:])
	if err != nil || number <= 0 {
		return "", 0, false
	}
	return value[:idx], number, true
}

func truncateLabel(label string) string {
	const maxLabel = 100
	if utf8.RuneCountInString(label) <= maxLabel {
		return label
	}
	runes := []rune(label)
	return string(runes[:maxLabel-1]) + "…"
}
