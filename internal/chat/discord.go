package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// ContextCommand is the message context-menu entry that starts the
// existing-issue comment flow
const ContextCommand = "Report Bug/Feature"

// Discord implements Messenger on a discordgo session
type Discord struct {
	session *discordgo.Session
	guildID string
}

// NewDiscord wraps an open discordgo session
func NewDiscord(session *discordgo.Session, guildID string) *Discord {
	return &Discord{session: session, guildID: guildID}
}

// NewSession creates a discordgo session with the gateway intents the
// correlation flows need
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildMembers
	return session, nil
}

// RegisterCommands registers the message context-menu command
func (d *Discord) RegisterCommands() error {
	appID := d.session.State.User.ID
	_, err := d.session.ApplicationCommandCreate(appID, d.guildID, &discordgo.ApplicationCommand{
		Name: ContextCommand,
		Type: discordgo.MessageApplicationCommand,
	})
	if err != nil {
		return fmt.Errorf("failed to register context command: %w", err)
	}
	return nil
}

// OnMessage registers a handler for newly created messages. Messages
// authored by bots are filtered out before the handler runs.
func (d *Discord) OnMessage(fn func(ctx context.Context, m *Message)) {
	d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		fn(context.Background(), d.fromDiscordMessage(m.Message))
	})
}

// OnInteraction registers a handler for component presses, selection
// choices, and context-menu invocations
func (d *Discord) OnInteraction(fn func(ctx context.Context, it *Interaction)) {
	d.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		it := d.fromDiscordInteraction(i)
		if it == nil {
			return
		}
		fn(context.Background(), it)
	})
}

func (d *Discord) fromDiscordInteraction(i *discordgo.InteractionCreate) *Interaction {
	it := &Interaction{
		ChannelID: i.ChannelID,
		GuildID:   i.GuildID,
		Responder: &discordResponder{session: d.session, interaction: i.Interaction},
	}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		it.Token = data.CustomID
		it.Values = data.Values
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		it.Command = data.Name
		if target, ok := data.Resolved.Messages[data.TargetID]; ok {
			msg := d.fromDiscordMessage(target)
			msg.ChannelID = i.ChannelID
			msg.GuildID = i.GuildID
			it.TargetMessage = msg
		}
	default:
		return nil
	}

	return it
}

func (d *Discord) fromDiscordMessage(m *discordgo.Message) *Message {
	msg := &Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = m.Author.ID
		msg.AuthorName = displayName(m)
		msg.AuthorAvatar = m.Author.AvatarURL("")
		msg.AuthorBot = m.Author.Bot
	}
	if len(m.Embeds) > 0 {
		embed := m.Embeds[0]
		msg.EmbedTitle = embed.Title
		msg.EmbedBody = embed.Description
		if embed.Author != nil {
			msg.EmbedAuthor = embed.Author.Name
			msg.EmbedAuthorIcon = embed.Author.IconURL
		}
	}
	if m.MessageReference != nil {
		msg.ReferencedID = m.MessageReference.MessageID
	}
	if m.Thread != nil {
		msg.ThreadID = m.Thread.ID
	}
	if m.GuildID != "" {
		msg.URL = messageURL(m.GuildID, m.ChannelID, m.ID)
	}
	return msg
}

// fromRESTMessage maps a message fetched over REST. REST payloads carry no
// guild_id (it is a gateway-only field), so the session's guild fills in and
// the canonical URL is derived from it.
func (d *Discord) fromRESTMessage(m *discordgo.Message) *Message {
	msg := d.fromDiscordMessage(m)
	if msg.GuildID == "" {
		msg.GuildID = d.guildID
	}
	if msg.URL == "" && msg.GuildID != "" {
		msg.URL = messageURL(msg.GuildID, msg.ChannelID, msg.ID)
	}
	return msg
}

func messageURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func renderCard(card *Card) ([]*discordgo.MessageEmbed, []discordgo.MessageComponent) {
	embed := &discordgo.MessageEmbed{
		Title:       card.Title,
		Description: card.Body,
		Color:       card.Color,
	}
	if card.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    card.AuthorName,
			IconURL: card.AuthorIcon,
		}
	}
	if !card.Timestamp.IsZero() {
		embed.Timestamp = card.Timestamp.Format(time.RFC3339)
	}
	for _, f := range card.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  f.Name,
			Value: f.Value,
		})
	}

	var components []discordgo.MessageComponent
	if len(card.Controls) > 0 {
		components = []discordgo.MessageComponent{discordgo.ActionsRow{
			Components: renderControls(card.Controls),
		}}
	}

	return []*discordgo.MessageEmbed{embed}, components
}

func renderControls(controls []Control) []discordgo.MessageComponent {
	rendered := make([]discordgo.MessageComponent, 0, len(controls))
	for _, c := range controls {
		rendered = append(rendered, discordgo.Button{
			Label:    c.Label,
			Style:    buttonStyle(c.Style),
			CustomID: c.Token,
			Disabled: c.Disabled,
		})
	}
	return rendered
}

func buttonStyle(style ControlStyle) discordgo.ButtonStyle {
	switch style {
	case StyleDanger:
		return discordgo.DangerButton
	case StyleSuccess:
		return discordgo.SuccessButton
	default:
		return discordgo.PrimaryButton
	}
}

// Reply posts a card as a reply to an existing message
func (d *Discord) Reply(ctx context.Context, channelID, messageID string, card *Card) (string, error) {
	embeds, components := renderCard(card)
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     embeds,
		Components: components,
		Reference: &discordgo.MessageReference{
			MessageID: messageID,
			ChannelID: channelID,
			GuildID:   d.guildID,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to post reply: %w", err)
	}
	return msg.ID, nil
}

// Edit replaces a card message's embed and controls
func (d *Discord) Edit(ctx context.Context, channelID, messageID string, card *Card) error {
	embeds, components := renderCard(card)
	_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// FetchMessage retrieves a message. The thread started from a message shares
// its ID, so the thread link is recovered with a channel lookup when the
// message payload does not carry it.
func (d *Discord) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	m, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	msg := d.fromRESTMessage(m)
	if msg.ThreadID == "" {
		if ch, err := d.session.Channel(messageID, discordgo.WithContext(ctx)); err == nil && ch.IsThread() {
			msg.ThreadID = ch.ID
		}
	}
	return msg, nil
}

// StartThread starts a discussion thread from a message
func (d *Discord) StartThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	thread, err := d.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 1440,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to start thread: %w", err)
	}
	return thread.ID, nil
}

// RenameThread changes a thread's display name
func (d *Discord) RenameThread(ctx context.Context, threadID, name string) error {
	_, err := d.session.ChannelEdit(threadID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to rename thread: %w", err)
	}
	return nil
}

// ArchiveThread archives a thread unless it is already archived or locked
func (d *Discord) ArchiveThread(ctx context.Context, threadID string) error {
	ch, err := d.session.Channel(threadID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch thread: %w", err)
	}
	if ch.ThreadMetadata != nil && (ch.ThreadMetadata.Archived || ch.ThreadMetadata.Locked) {
		return nil
	}
	archived := true
	_, err = d.session.ChannelEdit(threadID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to archive thread: %w", err)
	}
	return nil
}

// Send posts plain content to a channel or thread
func (d *Discord) Send(ctx context.Context, channelID, content string) error {
	_, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// MemberIDByName resolves a guild member's ID by display name. Matching by
// name is ambiguous and kept only as a fallback for reports whose original
// message is no longer reachable.
func (d *Discord) MemberIDByName(ctx context.Context, guildID, displayName string) (string, error) {
	members, err := d.session.GuildMembers(guildID, "", 1000, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild members: %w", err)
	}
	return findMemberID(members, displayName), nil
}

func findMemberID(members []*discordgo.Member, displayName string) string {
	for _, m := range members {
		if m.User == nil {
			continue
		}
		if m.Nick == displayName || m.User.GlobalName == displayName || m.User.Username == displayName {
			return m.User.ID
		}
	}
	return ""
}

type discordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func (r *discordResponder) Ephemeral(content string, controls ...Control) error {
	data := &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}
	if len(controls) > 0 {
		data.Components = []discordgo.MessageComponent{discordgo.ActionsRow{
			Components: renderControls(controls),
		}}
	}
	return r.respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (r *discordResponder) Select(content, token, placeholder string, options []SelectOption) error {
	menuOptions := make([]discordgo.SelectMenuOption, 0, len(options))
	for _, o := range options {
		menuOptions = append(menuOptions, discordgo.SelectMenuOption{
			Label: o.Label,
			Value: o.Value,
		})
	}
	return r.respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
			Components: []discordgo.MessageComponent{discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{discordgo.SelectMenu{
					CustomID:    token,
					Placeholder: placeholder,
					Options:     menuOptions,
				}},
			}},
		},
	})
}

func (r *discordResponder) Update(content string, controls ...Control) error {
	data := &discordgo.InteractionResponseData{
		Content:    content,
		Components: []discordgo.MessageComponent{},
	}
	if len(controls) > 0 {
		data.Components = []discordgo.MessageComponent{discordgo.ActionsRow{
			Components: renderControls(controls),
		}}
	}
	return r.respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
}

func (r *discordResponder) respond(resp *discordgo.InteractionResponse) error {
	if err := r.session.InteractionRespond(r.interaction, resp); err != nil {
		log.Error().Err(err).Msg("Failed to respond to interaction")
		return fmt.Errorf("failed to respond to interaction: %w", err)
	}
	return nil
}
