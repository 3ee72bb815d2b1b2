package model

type RateType string

const (
	RateHourly      RateType = "hourly"
	RateFixed       RateType = "fixed"
	RateNonBillable RateType = "non-billable"
)

func (r RateType) Valid() bool {
	switch r {
	case RateHourly, RateFixed, RateNonBillable:
		return true
	}
	return false
}

// Billing describes how a task is charged. The amount is always computed, never stored.
type Billing struct {
	Billable bool     `json:"billable"`
	RateType RateType `json:"rateType"`
	Rate     *float64 `json:"rate,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

func (b Billing) clone() Billing {
	if b.Rate != nil {
		r := *b.Rate
		b.Rate = &r
	}
	return b
}
