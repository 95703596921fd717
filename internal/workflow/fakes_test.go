package workflow

import (
	"context"
	"fmt"

	"github.com/reportsync/internal/chat"
	"github.com/reportsync/internal/store"
	"github.com/reportsync/internal/tracker"
	"github.com/reportsync/pkg/models"
)

type fakeStore struct {
	reports       []models.ReportMessage
	issues        []models.TrackerIssue
	threads       []models.DiscussionThread
	issueByCard   map[string]*models.TrackerIssue
	issueByThread map[string]*models.TrackerIssue
	createErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		issueByCard:   make(map[string]*models.TrackerIssue),
		issueByThread: make(map[string]*models.TrackerIssue),
	}
}

func (f *fakeStore) CreateCorrelation(_ context.Context, report *models.ReportMessage, issue *models.TrackerIssue, thread *models.DiscussionThread) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.issueByCard[report.CardMessageID]; ok {
		return store.ErrAlreadyLinked
	}
	report.ID = int64(len(f.reports) + 1)
	issue.ReportID = report.ID
	issue.ID = int64(len(f.issues) + 1)
	f.reports = append(f.reports, *report)
	f.issues = append(f.issues, *issue)
	f.issueByCard[report.CardMessageID] = issue
	if thread != nil {
		thread.ReportID = report.ID
		f.threads = append(f.threads, *thread)
		f.issueByThread[thread.ThreadID] = issue
	}
	return nil
}

func (f *fakeStore) IssueByCardMessage(_ context.Context, cardMessageID string) (*models.TrackerIssue, error) {
	return f.issueByCard[cardMessageID], nil
}

func (f *fakeStore) IssueByThread(_ context.Context, threadID string) (*models.TrackerIssue, error) {
	return f.issueByThread[threadID], nil
}

type createdIssue struct {
	owner, repo, title, body string
	labels                   []string
}

type postedComment struct {
	owner, repo string
	number      int
	body        string
}

type fakeTracker struct {
	created    []createdIssue
	comments   []postedComment
	open       map[string][]tracker.Issue
	nextNumber int
	createErr  error
	commentErr error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{open: make(map[string][]tracker.Issue), nextNumber: 100}
}

func (f *fakeTracker) CreateIssue(_ context.Context, owner, repo, title, body string, labels []string) (*tracker.Issue, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextNumber++
	f.created = append(f.created, createdIssue{owner: owner, repo: repo, title: title, body: body, labels: labels})
	return &tracker.Issue{
		Number:  f.nextNumber,
		Title:   title,
		State:   "open",
		HTMLURL: fmt.Sprintf("https://github.test/%s/%s/issues/%d", owner, repo, f.nextNumber),
	}, nil
}

func (f *fakeTracker) CreateComment(_ context.Context, owner, repo string, number int, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, postedComment{owner: owner, repo: repo, number: number, body: body})
	return nil
}

func (f *fakeTracker) ListOpenIssues(_ context.Context, _, repo string, perPage int) ([]tracker.Issue, error) {
	issues := f.open[repo]
	if len(issues) > perPage {
		issues = issues[:perPage]
	}
	return issues, nil
}

type sentMessage struct {
	channelID string
	content   string
}

type fakeMessenger struct {
	messages  map[string]*chat.Message
	replies   []chat.Card
	edits     map[string]*chat.Card
	sends     []sentMessage
	renames   map[string]string
	archived  []string
	threadIDs map[string]string
	fetchErr  error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		messages:  make(map[string]*chat.Message),
		edits:     make(map[string]*chat.Card),
		renames:   make(map[string]string),
		threadIDs: make(map[string]string),
	}
}

func (f *fakeMessenger) Reply(_ context.Context, channelID, messageID string, card *chat.Card) (string, error) {
	f.replies = append(f.replies, *card)
	id := fmt.Sprintf("reply-%d", len(f.replies))
	f.messages[id] = &chat.Message{
		ID:           id,
		ChannelID:    channelID,
		ReferencedID: messageID,
		EmbedTitle:   card.Title,
		EmbedBody:    card.Body,
		EmbedAuthor:  card.AuthorName,
	}
	return id, nil
}

func (f *fakeMessenger) Edit(_ context.Context, _, messageID string, card *chat.Card) error {
	f.edits[messageID] = card
	return nil
}

func (f *fakeMessenger) FetchMessage(_ context.Context, _, messageID string) (*chat.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	m, ok := f.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	return m, nil
}

func (f *fakeMessenger) StartThread(_ context.Context, _, messageID, name string) (string, error) {
	id := "thread-" + messageID
	f.threadIDs[messageID] = id
	f.renames[id] = name
	return id, nil
}

func (f *fakeMessenger) RenameThread(_ context.Context, threadID, name string) error {
	f.renames[threadID] = name
	return nil
}

func (f *fakeMessenger) ArchiveThread(_ context.Context, threadID string) error {
	f.archived = append(f.archived, threadID)
	return nil
}

func (f *fakeMessenger) Send(_ context.Context, channelID, content string) error {
	f.sends = append(f.sends, sentMessage{channelID: channelID, content: content})
	return nil
}

func (f *fakeMessenger) MemberIDByName(_ context.Context, _, displayName string) (string, error) {
	if displayName == "Alice" {
		return "alice-id", nil
	}
	return "", nil
}

type responderCall struct {
	kind     string
	content  string
	controls []chat.Control
	token    string
	options  []chat.SelectOption
}

type fakeResponder struct {
	calls []responderCall
}

func (f *fakeResponder) Ephemeral(content string, controls ...chat.Control) error {
	f.calls = append(f.calls, responderCall{kind: "ephemeral", content: content, controls: controls})
	return nil
}

func (f *fakeResponder) Select(content, token, _ string, options []chat.SelectOption) error {
	f.calls = append(f.calls, responderCall{kind: "select", content: content, token: token, options: options})
	return nil
}

func (f *fakeResponder) Update(content string, controls ...chat.Control) error {
	f.calls = append(f.calls, responderCall{kind: "update", content: content, controls: controls})
	return nil
}

func (f *fakeResponder) last() responderCall {
	if len(f.calls) == 0 {
		return responderCall{}
	}
	return f.calls[len(f.calls)-1]
}
