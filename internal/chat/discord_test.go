package chat

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCard(t *testing.T) {
	card := &Card{
		Title:      "📝 New Bug Report / Feature Request",
		Body:       "App crashes on save",
		AuthorName: "Alice",
		AuthorIcon: "https://cdn.test/alice.png",
		Timestamp:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Color:      ColorPrimary,
		Fields:     []Field{{Name: "✅ Linked Issue", Value: "[View](https://x)"}},
		Controls: []Control{
			{Token: "v1_create_bug_card-1", Label: "🐞 Create Bug Issue", Style: StyleDanger},
			{Token: "v1_create_feature_card-1", Label: "✨ Create Feature Issue", Style: StylePrimary, Disabled: true},
		},
	}

	embeds, components := renderCard(card)

	require.Len(t, embeds, 1)
	embed := embeds[0]
	assert.Equal(t, card.Title, embed.Title)
	assert.Equal(t, card.Body, embed.Description)
	assert.Equal(t, ColorPrimary, embed.Color)
	require.NotNil(t, embed.Author)
	assert.Equal(t, "Alice", embed.Author.Name)
	assert.Equal(t, "2026-03-14T12:00:00Z", embed.Timestamp)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "✅ Linked Issue", embed.Fields[0].Name)

	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	require.Len(t, row.Components, 2)

	bug, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, "v1_create_bug_card-1", bug.CustomID)
	assert.Equal(t, discordgo.DangerButton, bug.Style)
	assert.False(t, bug.Disabled)

	feature, ok := row.Components[1].(discordgo.Button)
	require.True(t, ok)
	assert.Equal(t, discordgo.PrimaryButton, feature.Style)
	assert.True(t, feature.Disabled)
}

func TestRenderCardWithoutControls(t *testing.T) {
	embeds, components := renderCard(&Card{Title: "t", Body: "b"})
	require.Len(t, embeds, 1)
	assert.Nil(t, embeds[0].Author)
	assert.Empty(t, embeds[0].Timestamp)
	assert.Nil(t, components)
}

func TestFromDiscordMessage(t *testing.T) {
	d := NewDiscord(nil, "guild-1")
	m := &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Content:   "App crashes on save",
		Author: &discordgo.User{
			ID:         "user-42",
			Username:   "alice99",
			GlobalName: "Alice",
		},
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "📝 New Bug Report / Feature Request",
			Description: "embedded body",
			Author:      &discordgo.MessageEmbedAuthor{Name: "Alice", IconURL: "https://cdn.test/a.png"},
		}},
		MessageReference: &discordgo.MessageReference{MessageID: "orig-1"},
		Thread:           &discordgo.Channel{ID: "thread-1"},
	}

	msg := d.fromDiscordMessage(m)

	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "user-42", msg.AuthorID)
	assert.Equal(t, "Alice", msg.AuthorName, "global name wins over username")
	assert.Equal(t, "embedded body", msg.EmbedBody)
	assert.Equal(t, "Alice", msg.EmbedAuthor)
	assert.Equal(t, "orig-1", msg.ReferencedID)
	assert.Equal(t, "thread-1", msg.ThreadID)
	assert.Equal(t, "https://discord.com/channels/guild-1/chan-1/msg-1", msg.URL)
}

func TestFromRESTMessageDerivesURL(t *testing.T) {
	d := NewDiscord(nil, "guild-1")

	// REST get-message payloads carry no guild_id.
	m := &discordgo.Message{
		ID:        "msg-1",
		ChannelID: "chan-1",
		Content:   "App crashes on save",
		Author:    &discordgo.User{ID: "user-42", Username: "alice99"},
	}

	msg := d.fromRESTMessage(m)

	assert.Equal(t, "guild-1", msg.GuildID)
	assert.Equal(t, "https://discord.com/channels/guild-1/chan-1/msg-1", msg.URL,
		"URL must be derived after the session guild fills in")
}

func TestFindMemberID(t *testing.T) {
	members := []*discordgo.Member{
		{Nick: "Team Alice"}, // no user payload
		{Nick: "Team Alice", User: &discordgo.User{ID: "alice-id", Username: "alice99"}},
		{User: &discordgo.User{ID: "bob-id", Username: "bob", GlobalName: "Bob"}},
	}

	assert.Equal(t, "alice-id", findMemberID(members, "Team Alice"))
	assert.Equal(t, "bob-id", findMemberID(members, "Bob"))
	assert.Equal(t, "bob-id", findMemberID(members, "bob"))
	assert.Equal(t, "", findMemberID(members, "nobody"))
}

func TestDisplayNamePrefersNick(t *testing.T) {
	m := &discordgo.Message{
		Author: &discordgo.User{Username: "alice99", GlobalName: "Alice"},
		Member: &discordgo.Member{Nick: "Team Alice"},
	}
	assert.Equal(t, "Team Alice", displayName(m))
}

func TestText(t *testing.T) {
	withContent := &Message{Content: "hello", EmbedBody: "embed"}
	assert.Equal(t, "hello", withContent.Text())

	embedOnly := &Message{EmbedBody: "embed"}
	assert.Equal(t, "embed", embedOnly.Text())
}

func TestMention(t *testing.T) {
	assert.Equal(t, "<@user-42>", Mention("user-42"))
}
