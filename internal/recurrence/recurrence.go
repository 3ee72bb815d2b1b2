// Package recurrence expands a recurrence rule into due dates and spawns task instances.
package recurrence

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/model"
)

// DefaultOccurrences bounds a rule that sets neither occurrences nor an end date.
const DefaultOccurrences = 52

// Validate checks a rule before it is stored or expanded.
func Validate(r model.Recurrence) error {
	if !r.Pattern.Valid() {
		return model.NewValidationError("pattern", fmt.Sprintf("unknown pattern %q", r.Pattern))
	}
	if r.Interval < 1 {
		return model.NewValidationError("interval", "must be at least 1")
	}
	if r.Occurrences != nil && *r.Occurrences < 1 {
		return model.NewValidationError("occurrences", "must be at least 1")
	}
	for _, d := range r.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return model.NewValidationError("daysOfWeek", fmt.Sprintf("invalid weekday %d", d))
		}
	}
	// A custom rule with no weekdays could never produce a date, so it is refused up front.
	if r.Pattern == model.RecurCustom && len(r.DaysOfWeek) == 0 {
		return model.NewValidationError("daysOfWeek", "a custom pattern needs at least one weekday")
	}
	return nil
}

// CalculateDates returns the due dates that follow start, in order. The first
// date is one step after start; an end date is inclusive.
func CalculateDates(r model.Recurrence, start time.Time) ([]time.Time, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}

	limit := DefaultOccurrences
	if r.Occurrences != nil {
		limit = *r.Occurrences
	}
	within := func(d time.Time) bool {
		return r.EndDate == nil || !d.After(*r.EndDate)
	}

	dates := make([]time.Time, 0, limit)
	if r.Pattern == model.RecurCustom {
		// One matching day per week at least, so this many days always fills the limit.
		guard := limit*7 + 7
		for i := 1; i <= guard && len(dates) < limit; i++ {
			d := start.AddDate(0, 0, i)
			if !within(d) {
				break
			}
			if slices.Contains(r.DaysOfWeek, d.Weekday()) {
				dates = append(dates, d)
			}
		}
		return dates, nil
	}

	for i := 1; len(dates) < limit; i++ {
		d := step(r.Pattern, start, r.Interval*i)
		if !within(d) {
			break
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func step(p model.RecurrencePattern, start time.Time, n int) time.Time {
	switch p {
	case model.RecurDaily:
		return start.AddDate(0, 0, n)
	case model.RecurWeekly:
		return start.AddDate(0, 0, 7*n)
	case model.RecurMonthly:
		return addMonths(start, n)
	case model.RecurCustom:
		return start.AddDate(0, 0, n)
	}
	return start
}

// addMonths moves n months ahead, clamping to the last day of a shorter month
// (Jan 31 + 1 month is Feb 28, not Mar 3).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// NewInstance spawns a fresh task from the source for the given due date.
// The instance starts over: new status, no progress, no comments, no time.
func NewInstance(source *model.Task, id uuid.UUID, due, now time.Time) *model.Task {
	inst := source.Clone()
	inst.ID = id
	inst.Status = model.StatusNew
	inst.Progress = 0
	inst.Comments = nil
	inst.TimeEntries = nil
	inst.ActualHours = 0
	inst.CompletedAt = nil
	inst.Recurrence = nil
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.Version = 0

	srcID := source.ID
	inst.SourceTaskID = &srcID

	var offset time.Duration
	if source.DueDate != nil {
		offset = due.Sub(*source.DueDate)
	}
	inst.DueDate = &due

	for i := range inst.Milestones {
		ms := &inst.Milestones[i]
		ms.DueDate = ms.DueDate.Add(offset)
		ms.Status = model.MilestonePending
		ms.CompletedAt = nil
	}

	if inst.Workflow != nil {
		w := inst.Workflow
		w.CurrentStep = 1
		for i := range w.Sequence {
			w.Sequence[i].Status = model.StepPending
			w.Sequence[i].CompletedAt = nil
			w.Sequence[i].Notes = ""
		}
	}

	inst.AuditTrail = []model.AuditEntry{
		model.NewAuditEntry(id, model.ActionCreated, source.AssignerID, now, map[string]any{
			"sourceTaskId": source.ID.String(),
			"dueDate":      due.Format(time.RFC3339),
		}),
	}
	return inst
}
