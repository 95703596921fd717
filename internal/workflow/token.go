package workflow

import (
	"strconv"
	"strings"

	"github.com/reportsync/pkg/models"
)

// Workflow state is not held in process memory between interaction steps; it
// round-trips through the opaque token attached to each rendered control, so
// a half-finished card survives a process restart.
//
// Newly minted tokens carry an explicit schema version ("v1") and
// percent-escaped fields, so a repository name containing the delimiter
// cannot corrupt the framing. The unversioned first-generation grammar
// (create_<kind>_<card>, repo_select_<kind>_<card>,
// confirm_<kind>_<repo>_<card>, comment_existing_<number>_<message>,
// select_existing_<message>) is still decoded so controls rendered before an
// upgrade keep working. Anything else decodes to nothing and is dropped.

const tokenVersion = "v1"

// ActionKind discriminates the decoded token variants
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionCreate
	ActionRepoSelect
	ActionConfirm
	ActionCommentExisting
	ActionSelectExisting
)

// Action is a decoded interaction token
type Action struct {
	Kind        ActionKind
	ReportKind  models.Kind
	Repo        string
	CardID      string
	IssueNumber int
	MessageID   string
}

func escapeField(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, "_", "%5F")
}

func unescapeField(s string) string {
	s = strings.ReplaceAll(s, "%5F", "_")
	return strings.ReplaceAll(s, "%25", "%")
}

func mint(fields ...string) string {
	escaped := make([]string, 0, len(fields)+1)
	escaped = append(escaped, tokenVersion)
	for _, f := range fields {
		escaped = append(escaped, escapeField(f))
	}
	return strings.Join(escaped, "_")
}

// EncodeCreate builds the token for a card's create-issue button
func EncodeCreate(kind models.Kind, cardID string) string {
	return mint("create", string(kind), cardID)
}

// EncodeRepoSelect builds the token for the repository picker
func EncodeRepoSelect(kind models.Kind, cardID string) string {
	return mint("repo", "select", string(kind), cardID)
}

// EncodeConfirm builds the token for the final confirm button
func EncodeConfirm(kind models.Kind, repo, cardID string) string {
	return mint("confirm", string(kind), repo, cardID)
}

// EncodeCommentExisting builds the token for the add-comment confirm button
func EncodeCommentExisting(repo string, issueNumber int, messageID string) string {
	return mint("comment", "existing", repo, strconv.Itoa(issueNumber), messageID)
}

// EncodeSelectExisting builds the token for the open-issue picker
func EncodeSelectExisting(messageID string) string {
	return mint("select", "existing", messageID)
}

// Decode parses a token into an Action. Malformed or unrecognized tokens
// return ok=false; they are a no-op, never an error surface.
func Decode(token string) (Action, bool) {
	if token == "" {
		return Action{}, false
	}
	fields := strings.Split(token, "_")
	if fields[0] == tokenVersion {
		for i, f := range fields[1:] {
			fields[i+1] = unescapeField(f)
		}
		return decodeFields(fields[1:])
	}
	return decodeLegacy(fields)
}

func decodeFields(fields []string) (Action, bool) {
	if len(fields) < 3 {
		return Action{}, false
	}

	switch {
	case fields[0] == "create" && len(fields) == 3:
		kind := models.Kind(fields[1])
		if !kind.Valid() {
			return Action{}, false
		}
		return Action{Kind: ActionCreate, ReportKind: kind, CardID: fields[2]}, true

	case fields[0] == "repo" && fields[1] == "select" && len(fields) == 4:
		kind := models.Kind(fields[2])
		if !kind.Valid() {
			return Action{}, false
		}
		return Action{Kind: ActionRepoSelect, ReportKind: kind, CardID: fields[3]}, true

	case fields[0] == "confirm" && len(fields) >= 4:
		kind := models.Kind(fields[1])
		if !kind.Valid() {
			return Action{}, false
		}
		// The repository is everything between the kind and the trailing
		// card ID; legacy tokens can carry underscores inside it.
		repo := strings.Join(fields[2:len(fields)-1], "_")
		return Action{Kind: ActionConfirm, ReportKind: kind, Repo: repo, CardID: fields[len(fields)-1]}, true

	case fields[0] == "comment" && fields[1] == "existing" && len(fields) == 5:
		number, err := strconv.Atoi(fields[3])
		if err != nil || number <= 0 {
			return Action{}, false
		}
		return Action{Kind: ActionCommentExisting, Repo: fields[2], IssueNumber: number, MessageID: fields[4]}, true

	case fields[0] == "comment" && fields[1] == "existing" && len(fields) == 4:
		number, err := strconv.Atoi(fields[2])
		if err != nil || number <= 0 {
			return Action{}, false
		}
		return Action{Kind: ActionCommentExisting, IssueNumber: number, MessageID: fields[3]}, true

	case fields[0] == "select" && fields[1] == "existing" && len(fields) == 3:
		return Action{Kind: ActionSelectExisting, MessageID: fields[2]}, true
	}

	return Action{}, false
}

func decodeLegacy(fields []string) (Action, bool) {
	return decodeFields(fields)
}
