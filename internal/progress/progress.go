// Package progress tracks task progress, milestone overdue state and the
// completion estimate derived from the audit history.
package progress

import (
	"fmt"
	"math"
	"sort"
	"time"

	"taskflow/internal/model"
)

const (
	// SignificantDelta is the progress change that warrants a notification.
	SignificantDelta = 20
	// NearCompletion is the threshold whose upward crossing is announced.
	NearCompletion = 90
)

// Audit detail keys of a progress-updated entry.
const (
	DetailOld   = "oldProgress"
	DetailNew   = "newProgress"
	DetailNotes = "notes"
)

// Update describes an applied progress change.
type Update struct {
	Old            int
	New            int
	Significant    bool
	NearCompletion bool
	// Overdue holds the indexes of milestones that became overdue.
	Overdue []int
}

// Details returns the audit details of the update.
func (u Update) Details(notes string) map[string]any {
	return map[string]any{
		DetailOld:   u.Old,
		DetailNew:   u.New,
		DetailNotes: notes,
	}
}

// Validate checks the progress is a percentage.
func Validate(p int) error {
	if p < 0 || p > 100 {
		return model.NewValidationError("progress", fmt.Sprintf("must be between 0 and 100, got %d", p))
	}
	return nil
}

// Apply sets the progress and refreshes the milestones.
func Apply(t *model.Task, p int, now time.Time) (Update, error) {
	if err := Validate(p); err != nil {
		return Update{}, err
	}

	u := Update{Old: t.Progress, New: p}
	delta := u.New - u.Old
	if delta < 0 {
		delta = -delta
	}
	u.Significant = delta >= SignificantDelta
	u.NearCompletion = u.Old < NearCompletion && u.New >= NearCompletion

	t.Progress = p
	u.Overdue = RefreshMilestones(t, now)
	return u, nil
}

// RefreshMilestones marks pending milestones whose due date has passed as overdue.
// Completed milestones are untouched. Returns the indexes that changed.
func RefreshMilestones(t *model.Task, now time.Time) []int {
	var changed []int
	for i, m := range t.Milestones {
		if m.Status == model.MilestonePending && m.DueDate.Before(now) {
			t.Milestones[i].Status = model.MilestoneOverdue
			changed = append(changed, i)
		}
	}
	return changed
}

// CompleteMilestone marks the milestone at index as completed.
func CompleteMilestone(t *model.Task, index int, now time.Time) error {
	if index < 0 || index >= len(t.Milestones) {
		return fmt.Errorf("%w: milestone %d", model.ErrNotFound, index)
	}
	if t.Milestones[index].Status == model.MilestoneCompleted {
		return fmt.Errorf("%w: milestone %d is already completed", model.ErrInvalidTransition, index)
	}
	at := now
	t.Milestones[index].Status = model.MilestoneCompleted
	t.Milestones[index].CompletedAt = &at
	return nil
}

// Notices returns who has to hear about the update.
func Notices(t *model.Task, u Update) []model.Notice {
	var ns []model.Notice
	if u.Significant {
		content := fmt.Sprintf("Progress of %q moved from %d%% to %d%%", t.Title, u.Old, u.New)
		ns = append(ns, model.Notice{UserID: t.AssignerID, Title: "Progress update", Content: content})

		if t.Workflow != nil && t.Status == model.StatusPendingApproval {
			if cur, ok := t.Workflow.Current(); ok && cur.AssigneeID != t.AssignerID {
				ns = append(ns, model.Notice{UserID: cur.AssigneeID, Title: "Progress update", Content: content})
			}
		}
	}
	if u.NearCompletion {
		ns = append(ns, model.Notice{
			UserID:  t.AssignerID,
			Title:   "Task near completion",
			Content: fmt.Sprintf("%q reached %d%%", t.Title, u.New),
		})
	}
	return ns
}

type sample struct {
	at       time.Time
	progress int
}

// EstimateCompletion extrapolates the progress-updated history linearly.
// It returns nil with fewer than two samples or when progress is flat or decreasing.
func EstimateCompletion(t *model.Task, now time.Time) *time.Time {
	var samples []sample
	for _, e := range t.AuditTrail {
		if e.Action != model.ActionProgressUpdated {
			continue
		}
		p, ok := e.IntDetail(DetailNew)
		if !ok {
			continue
		}
		samples = append(samples, sample{at: e.Timestamp, progress: p})
	}
	if len(samples) < 2 {
		return nil
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

	earliest, latest := samples[0], samples[len(samples)-1]
	days := latest.at.Sub(earliest.at).Hours() / 24
	if days <= 0 {
		return nil
	}
	dailyRate := float64(latest.progress-earliest.progress) / days
	if dailyRate <= 0 {
		return nil
	}

	remaining := float64(100-t.Progress) / dailyRate
	if remaining < 0 {
		remaining = 0
	}
	eta := now.AddDate(0, 0, int(math.Ceil(remaining)))
	return &eta
}
