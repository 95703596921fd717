package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportsync/internal/chat"
	"github.com/reportsync/pkg/models"
)

func testConfig() Config {
	return Config{Owner: "acme", Repos: []string{"webapp", "api"}, GuildID: "guild-1"}
}

func seedCard(m *fakeMessenger) {
	m.messages["orig-1"] = &chat.Message{
		ID:         "orig-1",
		ChannelID:  "chan-1",
		AuthorID:   "user-42",
		AuthorName: "Alice",
		Content:    "App crashes on save every time",
		URL:        "https://discord.test/chan-1/orig-1",
	}
	m.messages["card-1"] = &chat.Message{
		ID:           "card-1",
		ChannelID:    "chan-1",
		EmbedTitle:   "📝 New Bug Report",
		EmbedBody:    "App crashes on save every time",
		EmbedAuthor:  "Alice",
		ReferencedID: "orig-1",
		ThreadID:     "thread-1",
	}
}

func TestIssueWorkflowConfirm(t *testing.T) {
	st := newFakeStore()
	tr := newFakeTracker()
	msgr := newFakeMessenger()
	seedCard(msgr)
	w := NewIssueWorkflow(st, tr, msgr, testConfig())

	resp := &fakeResponder{}
	it := &chat.Interaction{ChannelID: "chan-1", GuildID: "guild-1", Responder: resp}
	action := Action{Kind: ActionConfirm, ReportKind: models.KindBug, Repo: "webapp", CardID: "card-1"}

	w.Confirm(context.Background(), it, action)

	require.Len(t, tr.created, 1)
	created := tr.created[0]
	assert.Equal(t, "acme", created.owner)
	assert.Equal(t, "webapp", created.repo)
	assert.Equal(t, "Bug: App crashes on save every time", created.title)
	assert.Equal(t, []string{"bug"}, created.labels)
	assert.Contains(t, created.body, "**Reported by:** Alice")
	assert.Contains(t, created.body, "https://discord.test/chan-1/orig-1")

	require.Len(t, st.reports, 1)
	report := st.reports[0]
	assert.Equal(t, "orig-1", report.MessageID)
	assert.Equal(t, "card-1", report.CardMessageID)
	assert.Equal(t, "user-42", report.AuthorID)
	assert.Equal(t, models.KindBug, report.Kind)

	require.Len(t, st.issues, 1)
	assert.Equal(t, 101, st.issues[0].Number)

	// Card switched to its terminal rendering with both controls disabled.
	terminal := msgr.edits["card-1"]
	require.NotNil(t, terminal)
	assert.Equal(t, chat.ColorSuccess, terminal.Color)
	require.Len(t, terminal.Fields, 1)
	assert.Equal(t, "✅ Linked Issue", terminal.Fields[0].Name)
	require.Len(t, terminal.Controls, 2)
	for _, ctrl := range terminal.Controls {
		assert.True(t, ctrl.Disabled)
	}

	assert.Equal(t, "Discussion: Alice's Report · #101", msgr.renames["thread-1"])
	require.Len(t, msgr.sends, 1)
	assert.Equal(t, "thread-1", msgr.sends[0].channelID)
	assert.Contains(t, msgr.sends[0].content, "Issue #101 has been created")
	assert.Contains(t, msgr.sends[0].content, "<@user-42>")

	assert.Equal(t, "update", resp.last().kind)
	assert.Contains(t, resp.last().content, "Bug issue created successfully")
}

func TestIssueWorkflowConfirmIsIdempotent(t *testing.T) {
	st := newFakeStore()
	tr := newFakeTracker()
	msgr := newFakeMessenger()
	seedCard(msgr)
	w := NewIssueWorkflow(st, tr, msgr, testConfig())

	it := &chat.Interaction{ChannelID: "chan-1", GuildID: "guild-1", Responder: &fakeResponder{}}
	action := Action{Kind: ActionConfirm, ReportKind: models.KindBug, Repo: "webapp", CardID: "card-1"}
	w.Confirm(context.Background(), it, action)

	resp := &fakeResponder{}
	it2 := &chat.Interaction{ChannelID: "chan-1", GuildID: "guild-1", Responder: resp}
	w.Confirm(context.Background(), it2, action)

	assert.Len(t, tr.created, 1, "second confirm must not file another issue")
	assert.Len(t, st.issues, 1)
	assert.Contains(t, resp.last().content, "already linked")
}

func TestIssueWorkflowConfirmRejectsUnknownRepo(t *testing.T) {
	st := newFakeStore()
	tr := newFakeTracker()
	msgr := newFakeMessenger()
	seedCard(msgr)
	w := NewIssueWorkflow(st, tr, msgr, testConfig())

	resp := &fakeResponder{}
	it := &chat.Interaction{ChannelID: "chan-1", Responder: resp}
	w.Confirm(context.Background(), it, Action{Kind: ActionConfirm, ReportKind: models.KindBug, Repo: "evil", CardID: "card-1"})

	assert.Empty(t, tr.created)
	assert.Empty(t, st.issues)
	assert.Empty(t, resp.calls)
}

func TestIssueWorkflowAuthorFallback(t *testing.T) {
	t.Run("member lookup by display name", func(t *testing.T) {
		st := newFakeStore()
		tr := newFakeTracker()
		msgr := newFakeMessenger()
		msgr.messages["card-2"] = &chat.Message{
			ID: "card-2", ChannelID: "chan-1",
			EmbedBody: "search box ignores quotes", EmbedAuthor: "Alice",
			ThreadID: "thread-2",
		}
		w := NewIssueWorkflow(st, tr, msgr, testConfig())

		it := &chat.Interaction{ChannelID: "chan-1", GuildID: "guild-1", Responder: &fakeResponder{}}
		w.Confirm(context.Background(), it, Action{Kind: ActionConfirm, ReportKind: models.KindFeature, Repo: "api", CardID: "card-2"})

		require.Len(t, st.reports, 1)
		assert.Equal(t, "alice-id", st.reports[0].AuthorID)
	})

	t.Run("unresolvable author", func(t *testing.T) {
		st := newFakeStore()
		tr := newFakeTracker()
		msgr := newFakeMessenger()
		msgr.messages["card-3"] = &chat.Message{
			ID: "card-3", ChannelID: "chan-1",
			EmbedBody: "dark mode please", EmbedAuthor: "Bob",
			ThreadID: "thread-3",
		}
		w := NewIssueWorkflow(st, tr, msgr, testConfig())

		it := &chat.Interaction{ChannelID: "chan-1", GuildID: "guild-1", Responder: &fakeResponder{}}
		w.Confirm(context.Background(), it, Action{Kind: ActionConfirm, ReportKind: models.KindFeature, Repo: "api", CardID: "card-3"})

		require.Len(t, st.reports, 1)
		assert.Equal(t, "unknown", st.reports[0].AuthorID)
		require.Len(t, msgr.sends, 1)
		assert.NotContains(t, msgr.sends[0].content, "<@", "no mention when the author is unknown")
	})
}

func TestIssueWorkflowPickRepository(t *testing.T) {
	w := NewIssueWorkflow(newFakeStore(), newFakeTracker(), newFakeMessenger(), testConfig())

	resp := &fakeResponder{}
	it := &chat.Interaction{Responder: resp}
	w.PickRepository(context.Background(), it, Action{Kind: ActionCreate, ReportKind: models.KindBug, CardID: "card-1"})

	require.Len(t, resp.calls, 1)
	call := resp.calls[0]
	assert.Equal(t, "select", call.kind)
	require.Len(t, call.options, 2)
	assert.Equal(t, "webapp", call.options[0].Value)

	action, ok := Decode(call.token)
	require.True(t, ok)
	assert.Equal(t, ActionRepoSelect, action.Kind)
	assert.Equal(t, models.KindBug, action.ReportKind)
	assert.Equal(t, "card-1", action.CardID)
}

func TestIssueWorkflowConfirmPrompt(t *testing.T) {
	w := NewIssueWorkflow(newFakeStore(), newFakeTracker(), newFakeMessenger(), testConfig())

	resp := &fakeResponder{}
	it := &chat.Interaction{Values: []string{"api"}, Responder: resp}
	w.ConfirmPrompt(context.Background(), it, Action{Kind: ActionRepoSelect, ReportKind: models.KindFeature, CardID: "card-1"})

	require.Len(t, resp.calls, 1)
	call := resp.calls[0]
	assert.Equal(t, "update", call.kind)
	require.Len(t, call.controls, 1)

	action, ok := Decode(call.controls[0].Token)
	require.True(t, ok)
	assert.Equal(t, ActionConfirm, action.Kind)
	assert.Equal(t, "api", action.Repo)
	assert.Equal(t, "card-1", action.CardID)
}

func TestIssueWorkflowConfirmPromptRejectsOffListRepo(t *testing.T) {
	w := NewIssueWorkflow(newFakeStore(), newFakeTracker(), newFakeMessenger(), testConfig())

	resp := &fakeResponder{}
	it := &chat.Interaction{Values: []string{"not-ours"}, Responder: resp}
	w.ConfirmPrompt(context.Background(), it, Action{Kind: ActionRepoSelect, ReportKind: models.KindBug, CardID: "card-1"})

	assert.Empty(t, resp.calls)
}
