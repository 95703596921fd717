// Package chat abstracts the chat platform behind narrow interfaces so the
// correlation workflows stay independent of the concrete client.
package chat

import (
	"context"
	"time"
)

// Colors used on report cards
const (
	ColorPrimary = 0x5865F2
	ColorSuccess = 0x57F287
)

// Control styles map to the platform's button styles
type ControlStyle int

const (
	StyleDanger ControlStyle = iota
	StylePrimary
	StyleSuccess
)

// Control is an interactive button carrying an opaque workflow token
type Control struct {
	Token    string
	Label    string
	Style    ControlStyle
	Disabled bool
}

// SelectOption is one entry of a selection list
type SelectOption struct {
	Label string
	Value string
}

// Field is a labeled value rendered on a card
type Field struct {
	Name  string
	Value string
}

// Card is the rendered summary of a report with its action controls
type Card struct {
	Title      string
	Body       string
	AuthorName string
	AuthorIcon string
	Timestamp  time.Time
	Color      int
	Fields     []Field
	Controls   []Control
}

// Message is the platform-neutral view of a chat message
type Message struct {
	ID              string
	ChannelID       string
	GuildID         string
	AuthorID        string
	AuthorName      string
	AuthorAvatar    string
	AuthorBot       bool
	Content         string
	EmbedTitle      string
	EmbedBody       string
	EmbedAuthor     string
	EmbedAuthorIcon string
	ReferencedID    string
	ThreadID        string
	URL             string
}

// Text returns the message content, falling back to the embed description
// for card-style messages
func (m *Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	return m.EmbedBody
}

// Messenger is the outbound chat operation surface
type Messenger interface {
	Reply(ctx context.Context, channelID, messageID string, card *Card) (string, error)
	Edit(ctx context.Context, channelID, messageID string, card *Card) error
	FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error)
	StartThread(ctx context.Context, channelID, messageID, name string) (string, error)
	RenameThread(ctx context.Context, threadID, name string) error
	ArchiveThread(ctx context.Context, threadID string) error
	Send(ctx context.Context, channelID, content string) error
	MemberIDByName(ctx context.Context, guildID, displayName string) (string, error)
}

// Responder answers a single inbound interaction
type Responder interface {
	// Ephemeral sends a reply visible only to the invoking user
	Ephemeral(content string, controls ...Control) error
	// Select sends an ephemeral selection list bound to a workflow token
	Select(content, token, placeholder string, options []SelectOption) error
	// Update replaces the content of the interaction's own message
	Update(content string, controls ...Control) error
}

// Interaction is one inbound interaction event
type Interaction struct {
	Token         string
	Values        []string
	Command       string
	TargetMessage *Message
	ChannelID     string
	GuildID       string
	Responder     Responder
}

// Mention formats a user mention
func Mention(userID string) string {
	return "<@" + userID + ">"
}
