package workflow

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/reportsync/internal/chat"
)

// Router decodes interaction tokens and dispatches to the matching workflow
// step. Every decoded token maps to exactly one step; anything unrecognized
// falls through without effect.
type Router struct {
	issues   *IssueWorkflow
	comments *CommentWorkflow
}

// NewRouter wires the router to the two workflows
func NewRouter(issues *IssueWorkflow, comments *CommentWorkflow) *Router {
	return &Router{issues: issues, comments: comments}
}

// HandleInteraction routes one inbound interaction event
func (r *Router) HandleInteraction(ctx context.Context, it *chat.Interaction) {
	if it.Command == chat.ContextCommand {
		r.comments.Start(ctx, it)
		return
	}
	if it.Command != "" {
		return
	}

	action, ok := Decode(it.Token)
	if !ok {
		log.Debug().Str("token", it.Token).Msg("Ignoring unrecognized interaction token")
		return
	}

	switch action.Kind {
	case ActionCreate:
		r.issues.PickRepository(ctx, it, action)
	case ActionRepoSelect:
		r.issues.ConfirmPrompt(ctx, it, action)
	case ActionConfirm:
		r.issues.Confirm(ctx, it, action)
	case ActionSelectExisting:
		r.comments.PickIssue(ctx, it, action)
	case ActionCommentExisting:
		r.comments.Post(ctx, it, action)
	}
}
