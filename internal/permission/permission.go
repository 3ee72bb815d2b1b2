// Package permission decides whether an actor may perform an action on a task.
// Decisions only read the task snapshot passed in.
package permission

import (
	"taskflow/internal/model"
)

type Action string

const (
	ActionView         Action = "view"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionComment      Action = "comment"
	ActionStatusChange Action = "status-change"
	ActionAssign       Action = "assign"
	ActionTimeTrack    Action = "time-track"
)

// Actions lists every action the evaluator knows.
var Actions = []Action{
	ActionView, ActionEdit, ActionDelete, ActionComment,
	ActionStatusChange, ActionAssign, ActionTimeTrack,
}

// CanPerform returns the node level answer for the actor, without any role bypass.
func CanPerform(t *model.Task, actorID int64, action Action) bool {
	isAssignee := actorID == t.AssigneeID
	isAssigner := actorID == t.AssignerID

	switch action {
	case ActionView, ActionComment:
		return t.IsParticipant(actorID)
	case ActionEdit:
		if t.Status.Terminal() {
			return false
		}
		return isAssignee || isAssigner
	case ActionDelete, ActionAssign:
		return isAssigner
	case ActionStatusChange:
		return canChangeStatus(t, actorID)
	case ActionTimeTrack:
		return isAssignee && !t.Status.Terminal()
	}
	return false
}

// CanLogTime is the ledger gate: the assignee while time tracking is open, or
// the assigner while the task is still editable.
func CanLogTime(t *model.Task, actorID int64) bool {
	if CanPerform(t, actorID, ActionTimeTrack) {
		return true
	}
	return actorID == t.AssignerID && CanPerform(t, actorID, ActionEdit)
}

func canChangeStatus(t *model.Task, actorID int64) bool {
	switch t.Status {
	case model.StatusInProgress, model.StatusApproved, model.StatusRejected:
		return actorID == t.AssigneeID
	case model.StatusPendingApproval:
		if t.Workflow != nil {
			cur, ok := t.Workflow.Current()
			return ok && cur.AssigneeID == actorID
		}
	}
	return actorID == t.AssigneeID || actorID == t.AssignerID
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	// Bypassed is set when the node level answer was a denial lifted by the actor role.
	Bypassed bool
}

// Evaluator applies the role capability around CanPerform.
type Evaluator struct {
	// AdminBypass lets admin actors through denied checks.
	AdminBypass bool
}

// Authorize evaluates the action for the actor and applies the admin bypass when enabled.
func (e Evaluator) Authorize(t *model.Task, actor model.Actor, action Action) Decision {
	return e.Decide(CanPerform(t, actor.ID, action), actor)
}

// Decide wraps a node level answer computed elsewhere into a Decision.
func (e Evaluator) Decide(allowed bool, actor model.Actor) Decision {
	if allowed {
		return Decision{Allowed: true}
	}
	if e.Bypass(actor) {
		return Decision{Allowed: true, Bypassed: true}
	}
	return Decision{}
}

// Bypass reports whether a denial raised outside the evaluator (an actor gate) may be lifted for actor.
func (e Evaluator) Bypass(actor model.Actor) bool {
	return e.AdminBypass && actor.IsAdmin()
}
