// Package transition holds the status transition tables and the actor gates
// layered on top of them.
package transition

import (
	"fmt"

	"taskflow/internal/model"
)

// Mode selects the status graph for a task.
type Mode string

const (
	// ModeSimple is used by tasks without an approval chain.
	ModeSimple Mode = "simple"
	// ModeWorkflow is used by tasks carrying a workflow.
	ModeWorkflow Mode = "workflow"
)

// ModeFor picks the graph for the task.
func ModeFor(t *model.Task) Mode {
	if t.HasWorkflow() {
		return ModeWorkflow
	}
	return ModeSimple
}

// next returns the statuses reachable from s in the given mode.
// completed->pending-approval is a legacy edge and is not part of either graph.
func next(mode Mode, s model.Status) []model.Status {
	switch s {
	case model.StatusDraft:
		return []model.Status{model.StatusNew}
	case model.StatusNew:
		return []model.Status{model.StatusInProgress, model.StatusCancelled}
	case model.StatusInProgress:
		if mode == ModeSimple {
			return []model.Status{model.StatusCompleted, model.StatusRejected}
		}
		return []model.Status{model.StatusPendingApproval, model.StatusCancelled}
	case model.StatusPendingApproval:
		if mode == ModeSimple {
			return nil
		}
		return []model.Status{model.StatusApproved, model.StatusRejected, model.StatusInProgress}
	case model.StatusApproved:
		if mode == ModeSimple {
			return nil
		}
		return []model.Status{model.StatusCompleted, model.StatusInProgress}
	case model.StatusRejected:
		return []model.Status{model.StatusInProgress, model.StatusCancelled}
	case model.StatusCompleted, model.StatusCancelled:
		return nil
	}
	return nil
}

// Allowed returns a copy of the statuses reachable from s.
func Allowed(mode Mode, s model.Status) []model.Status {
	return append([]model.Status(nil), next(mode, s)...)
}

// IsLegal reports whether the bare table allows from->to.
func IsLegal(mode Mode, from, to model.Status) bool {
	for _, s := range next(mode, from) {
		if s == to {
			return true
		}
	}
	return false
}

// Gate is the party allowed to move a task into a status.
type Gate int

const (
	GateParticipant Gate = iota
	GateAssignee
	GateAssigner
)

func (g Gate) String() string {
	switch g {
	case GateAssignee:
		return "assignee"
	case GateAssigner:
		return "assigner"
	}
	return "participant"
}

// GateFor returns who may move a task into s.
func GateFor(s model.Status) Gate {
	switch s {
	case model.StatusInProgress, model.StatusCompleted:
		return GateAssignee
	case model.StatusApproved, model.StatusRejected:
		return GateAssigner
	case model.StatusDraft, model.StatusNew, model.StatusPendingApproval, model.StatusCancelled:
		return GateParticipant
	}
	return GateParticipant
}

func (g Gate) admits(t *model.Task, actorID int64) bool {
	switch g {
	case GateAssignee:
		return actorID == t.AssigneeID
	case GateAssigner:
		return actorID == t.AssignerID
	}
	return t.IsParticipant(actorID)
}

// Check validates moving the task into requested for the actor. A table
// violation wraps model.ErrInvalidTransition, a gate violation wraps model.ErrForbidden.
func Check(t *model.Task, requested model.Status, actorID int64) error {
	if !requested.Valid() {
		return model.NewValidationError("status", fmt.Sprintf("unknown status %q", requested))
	}

	mode := ModeFor(t)
	if !IsLegal(mode, t.Status, requested) {
		return fmt.Errorf("%w: %s -> %s is not allowed for %s tasks", model.ErrInvalidTransition, t.Status, requested, mode)
	}

	if g := GateFor(requested); !g.admits(t, actorID) {
		return fmt.Errorf("%w: only the %s may move a task to %s", model.ErrForbidden, g, requested)
	}
	return nil
}

// IsLegalTransition reports whether actorID may move the task from current to requested.
func IsLegalTransition(current, requested model.Status, actorID int64, t *model.Task) bool {
	snapshot := *t
	snapshot.Status = current
	return Check(&snapshot, requested, actorID) == nil
}
