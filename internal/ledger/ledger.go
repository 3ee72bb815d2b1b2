// Package ledger keeps the time entries of a task and computes billing from them.
// The entry list is authoritative; ActualHours is a cache of its sum.
package ledger

import (
	"fmt"
	"math"
	"strings"

	"taskflow/internal/model"
)

const tolerance = 1e-6

// Sum adds the hours of every entry.
func Sum(entries []model.TimeEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Hours
	}
	return round(total, 4)
}

// Consistent reports whether the cached total matches the entries.
func Consistent(t *model.Task) bool {
	return math.Abs(t.ActualHours-Sum(t.TimeEntries)) < tolerance
}

// Reconcile recomputes the cached total from the entries when they diverged.
// Returns true when the cache had to be rebuilt.
func Reconcile(t *model.Task) bool {
	if Consistent(t) {
		return false
	}
	t.ActualHours = Sum(t.TimeEntries)
	return true
}

// Append adds an entry and bumps the cached total. Returns true when the cache
// was found diverged and rebuilt before the append.
func Append(t *model.Task, e model.TimeEntry) (bool, error) {
	if e.Hours <= 0 {
		return false, model.NewValidationError("hours", "must be greater than 0")
	}
	if e.Date.IsZero() {
		return false, model.NewValidationError("date", "is required")
	}

	reconciled := Reconcile(t)
	t.TimeEntries = append(t.TimeEntries, e)
	t.ActualHours = round(t.ActualHours+e.Hours, 4)
	return reconciled, nil
}

// Amount computes what the task is worth for the given hours.
func Amount(b model.Billing, hours float64) float64 {
	rate := 0.0
	if b.Rate != nil {
		rate = *b.Rate
	}

	switch b.RateType {
	case model.RateHourly:
		return round(hours*rate, 2)
	case model.RateFixed:
		return round(rate, 2)
	case model.RateNonBillable:
		return 0
	}
	return 0
}

// Normalize validates the billing block and returns it with a canonical currency.
func Normalize(b model.Billing) (model.Billing, error) {
	if !b.RateType.Valid() {
		return b, model.NewValidationError("rateType", fmt.Sprintf("unknown rate type %q", b.RateType))
	}

	switch b.RateType {
	case model.RateHourly, model.RateFixed:
		if b.Rate == nil || *b.Rate <= 0 {
			return b, model.NewValidationError("rate", fmt.Sprintf("a positive rate is required for %s billing", b.RateType))
		}
		if !b.Billable {
			return b, model.NewValidationError("billable", fmt.Sprintf("must be true for %s billing", b.RateType))
		}
	case model.RateNonBillable:
		if b.Billable {
			return b, model.NewValidationError("billable", "must be false for non-billable tasks")
		}
	}

	b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	if b.Currency != "" && len(b.Currency) != 3 {
		return b, model.NewValidationError("currency", "must be a 3 letter ISO code")
	}
	return b, nil
}

// Summary is the billing view of a task.
type Summary struct {
	ActualHours   float64        `json:"actualHours"`
	BillableHours float64        `json:"billableHours"`
	Amount        float64        `json:"amount"`
	RateType      model.RateType `json:"rateType"`
	Rate          *float64       `json:"rate,omitempty"`
	Currency      string         `json:"currency,omitempty"`
}

// Summarize computes the billing summary from the entry list.
func Summarize(t *model.Task) Summary {
	var billable float64
	for _, e := range t.TimeEntries {
		if e.Billable {
			billable += e.Hours
		}
	}
	hours := Sum(t.TimeEntries)
	return Summary{
		ActualHours:   hours,
		BillableHours: round(billable, 4),
		Amount:        Amount(t.Billing, hours),
		RateType:      t.Billing.RateType,
		Rate:          t.Billing.Rate,
		Currency:      t.Billing.Currency,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
