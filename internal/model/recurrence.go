package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
	RecurCustom  RecurrencePattern = "custom"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurDaily, RecurWeekly, RecurMonthly, RecurCustom:
		return true
	}
	return false
}

// Recurrence is the rule used to spawn future instances of a task.
// DaysOfWeek uses time.Weekday numbering (0 is Sunday).
type Recurrence struct {
	Enabled       bool              `json:"enabled"`
	Pattern       RecurrencePattern `json:"pattern"`
	Interval      int               `json:"interval"`
	DaysOfWeek    []time.Weekday    `json:"daysOfWeek,omitempty"`
	EndDate       *time.Time        `json:"endDate,omitempty"`
	Occurrences   *int              `json:"occurrences,omitempty"`
	RelatedTasks  []uuid.UUID       `json:"relatedTasks"`
	LastGenerated *time.Time        `json:"lastGenerated,omitempty"`
}

func (r Recurrence) clone() Recurrence {
	r.DaysOfWeek = slices.Clone(r.DaysOfWeek)
	r.RelatedTasks = slices.Clone(r.RelatedTasks)
	r.EndDate = cloneTime(r.EndDate)
	r.LastGenerated = cloneTime(r.LastGenerated)
	if r.Occurrences != nil {
		n := *r.Occurrences
		r.Occurrences = &n
	}
	return r
}
