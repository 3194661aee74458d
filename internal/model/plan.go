package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a subscription tier. Prices are stored in minor units.
type Plan struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description" db:"description"`
	PriceCents     int64     `json:"priceCents" db:"price_cents"`
	Currency       string    `json:"currency" db:"currency"`
	IntervalMonths int       `json:"intervalMonths" db:"interval_months"`
	MaxClients     int       `json:"maxClients" db:"max_clients"`
	TrialDays      int       `json:"trialDays" db:"trial_days"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Price returns the price in major units, e.g. 29900 -> 299.00.
func (p Plan) Price() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}

func (p Plan) HasTrial() bool {
	return p.TrialDays > 0
}

// MarshalJSON adds the formatted price next to the raw minor units.
func (p Plan) MarshalJSON() ([]byte, error) {
	type plan Plan
	return json.Marshal(struct {
		plan
		Price string `json:"price"`
	}{
		plan:  plan(p),
		Price: p.Price().StringFixed(2),
	})
}
