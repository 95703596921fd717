// Package intake watches the report channels and turns new messages into
// interactive report cards.
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reportsync/internal/chat"
	"github.com/reportsync/internal/workflow"
	"github.com/reportsync/pkg/models"
)

// Intake posts a report card with action controls for every new report
// message. Nothing is persisted at this stage: a card the user never
// confirms leaves no correlation row behind.
type Intake struct {
	messenger chat.Messenger
	channels  map[string]bool
}

// New creates an intake watching the given channel IDs
func New(messenger chat.Messenger, channels []string) *Intake {
	watched := make(map[string]bool, len(channels))
	for _, ch := range channels {
		watched[ch] = true
	}
	return &Intake{messenger: messenger, channels: watched}
}

// HandleMessage processes one message-created event. Bot authors are
// filtered upstream; messages outside the report channels are ignored.
func (in *Intake) HandleMessage(ctx context.Context, m *chat.Message) {
	if m.AuthorBot || !in.channels[m.ChannelID] {
		return
	}

	body := m.Content
	if body == "" {
		body = "*No content provided*"
	}

	card := &chat.Card{
		Title:      "📝 New Bug Report / Feature Request",
		Body:       body,
		AuthorName: m.AuthorName,
		AuthorIcon: m.AuthorAvatar,
		Timestamp:  time.Now(),
		Color:      chat.ColorPrimary,
	}

	cardID, err := in.messenger.Reply(ctx, m.ChannelID, m.ID, card)
	if err != nil {
		log.Error().Err(err).Str("message", m.ID).Msg("Failed to post report card")
		return
	}

	// The controls carry the card's own ID, which is only known after the
	// reply lands, so they are attached in a second edit.
	card.Controls = []chat.Control{
		{Token: workflow.EncodeCreate(models.KindBug, cardID), Label: "🐞 Create Bug Issue", Style: chat.StyleDanger},
		{Token: workflow.EncodeCreate(models.KindFeature, cardID), Label: "✨ Create Feature Issue", Style: chat.StylePrimary},
	}
	if err := in.messenger.Edit(ctx, m.ChannelID, cardID, card); err != nil {
		log.Error().Err(err).Str("card", cardID).Msg("Failed to attach card controls")
		return
	}

	threadName := fmt.Sprintf("Discussion: %s's Report", m.AuthorName)
	threadID, err := in.messenger.StartThread(ctx, m.ChannelID, cardID, threadName)
	if err != nil {
		log.Warn().Err(err).Str("card", cardID).Msg("Failed to start discussion thread")
		return
	}

	greeting := fmt.Sprintf("Hey %s, further discussion about this report can continue here. 💬", chat.Mention(m.AuthorID))
	if err := in.messenger.Send(ctx, threadID, greeting); err != nil {
		log.Warn().Err(err).Str("thread", threadID).Msg("Failed to post thread greeting")
	}

	log.Info().Str("message", m.ID).Str("card", cardID).Str("thread", threadID).Msg("Report card posted")
}
