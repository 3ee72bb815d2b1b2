package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskflow/internal/model"
	"taskflow/internal/permission"
)

const (
	assigner int64 = 10
	assignee int64 = 20
	reviewer int64 = 30
	approver int64 = 40
	outsider int64 = 99
)

func newTask(status model.Status) *model.Task {
	return &model.Task{
		Status:     status,
		AssignerID: assigner,
		AssigneeID: assignee,
		Workflow: &model.Workflow{
			CurrentStep: 2,
			TotalSteps:  2,
			Sequence: []model.Step{
				{Step: 1, Type: model.StepReview, AssigneeID: reviewer, Status: model.StepCompleted},
				{Step: 2, Type: model.StepApproval, AssigneeID: approver, Status: model.StepPending},
			},
		},
	}
}

func TestCanPerform(t *testing.T) {
	tests := map[string]struct {
		status model.Status
		action permission.Action
		exp    map[int64]bool
	}{
		"View should be open to every participant": {
			status: model.StatusInProgress,
			action: permission.ActionView,
			exp:    map[int64]bool{assigner: true, assignee: true, reviewer: true, approver: true, outsider: false},
		},
		"Comment should be open to every participant": {
			status: model.StatusCompleted,
			action: permission.ActionComment,
			exp:    map[int64]bool{assigner: true, assignee: true, reviewer: true, approver: true, outsider: false},
		},
		"Edit should be limited to assigner and assignee": {
			status: model.StatusInProgress,
			action: permission.ActionEdit,
			exp:    map[int64]bool{assigner: true, assignee: true, reviewer: false, outsider: false},
		},
		"Edit on a completed task should be denied to everybody": {
			status: model.StatusCompleted,
			action: permission.ActionEdit,
			exp:    map[int64]bool{assigner: false, assignee: false},
		},
		"Edit on a cancelled task should be denied to everybody": {
			status: model.StatusCancelled,
			action: permission.ActionEdit,
			exp:    map[int64]bool{assigner: false, assignee: false},
		},
		"Delete should be limited to the assigner": {
			status: model.StatusNew,
			action: permission.ActionDelete,
			exp:    map[int64]bool{assigner: true, assignee: false, approver: false},
		},
		"Assign should be limited to the assigner": {
			status: model.StatusNew,
			action: permission.ActionAssign,
			exp:    map[int64]bool{assigner: true, assignee: false},
		},
		"Status change while in progress should be limited to the assignee": {
			status: model.StatusInProgress,
			action: permission.ActionStatusChange,
			exp:    map[int64]bool{assigner: false, assignee: true, approver: false},
		},
		"Status change while pending approval should be limited to the current step assignee": {
			status: model.StatusPendingApproval,
			action: permission.ActionStatusChange,
			exp:    map[int64]bool{assigner: false, assignee: false, reviewer: false, approver: true},
		},
		"Status change while approved should be limited to the assignee": {
			status: model.StatusApproved,
			action: permission.ActionStatusChange,
			exp:    map[int64]bool{assigner: false, assignee: true},
		},
		"Status change while rejected should be limited to the assignee": {
			status: model.StatusRejected,
			action: permission.ActionStatusChange,
			exp:    map[int64]bool{assigner: false, assignee: true},
		},
		"Status change on a new task should be open to assigner and assignee": {
			status: model.StatusNew,
			action: permission.ActionStatusChange,
			exp:    map[int64]bool{assigner: true, assignee: true, approver: false},
		},
		"Time tracking should be limited to the assignee": {
			status: model.StatusInProgress,
			action: permission.ActionTimeTrack,
			exp:    map[int64]bool{assigner: false, assignee: true},
		},
		"Time tracking on a completed task should be denied": {
			status: model.StatusCompleted,
			action: permission.ActionTimeTrack,
			exp:    map[int64]bool{assignee: false},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			task := newTask(test.status)
			for actor, want := range test.exp {
				assert.Equal(t, want, permission.CanPerform(task, actor, test.action), "actor %d", actor)
			}
		})
	}
}

func TestCanPerformUnknownActionIsDenied(t *testing.T) {
	assert.False(t, permission.CanPerform(newTask(model.StatusNew), assigner, permission.Action("archive")))
}

func TestAuthorize(t *testing.T) {
	task := newTask(model.StatusInProgress)
	admin := model.Actor{ID: outsider, Role: model.RoleAdmin}

	tests := map[string]struct {
		evaluator permission.Evaluator
		actor     model.Actor
		exp       permission.Decision
	}{
		"A participant should be allowed without bypass": {
			evaluator: permission.Evaluator{AdminBypass: true},
			actor:     model.Actor{ID: assigner, Role: model.RoleEmployee},
			exp:       permission.Decision{Allowed: true},
		},
		"An admin should be let through when the bypass is enabled": {
			evaluator: permission.Evaluator{AdminBypass: true},
			actor:     admin,
			exp:       permission.Decision{Allowed: true, Bypassed: true},
		},
		"An admin should be denied when the bypass is disabled": {
			evaluator: permission.Evaluator{AdminBypass: false},
			actor:     admin,
			exp:       permission.Decision{},
		},
		"An employee outsider should be denied": {
			evaluator: permission.Evaluator{AdminBypass: true},
			actor:     model.Actor{ID: outsider, Role: model.RoleEmployee},
			exp:       permission.Decision{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.evaluator.Authorize(task, test.actor, permission.ActionEdit))
		})
	}
}

func TestCanLogTime(t *testing.T) {
	tests := map[string]struct {
		status model.Status
		exp    map[int64]bool
	}{
		"An open task should accept time from assignee and assigner": {
			status: model.StatusInProgress,
			exp:    map[int64]bool{assignee: true, assigner: true, reviewer: false, outsider: false},
		},
		"A completed task should not accept time": {
			status: model.StatusCompleted,
			exp:    map[int64]bool{assignee: false, assigner: false},
		},
		"A cancelled task should not accept time": {
			status: model.StatusCancelled,
			exp:    map[int64]bool{assignee: false, assigner: false},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			task := newTask(test.status)
			for actor, exp := range test.exp {
				assert.Equal(t, exp, permission.CanLogTime(task, actor), "actor %d", actor)
			}
		})
	}
}
