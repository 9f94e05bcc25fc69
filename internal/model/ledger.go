package model

import "time"

type HoldState string

const (
	HoldStateHeld     HoldState = "held"
	HoldStateCharged  HoldState = "charged"
	HoldStateRefunded HoldState = "refunded"
)

// Balance is a user's spendable credit balance.
type Balance struct {
	UserID    int64     `json:"user_id"`
	Credits   int64     `json:"credits"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditHold is the provisional debit taken when a job is submitted.
// There is at most one hold per job; it moves held -> charged on success
// or held -> refunded on failure, never both.
type CreditHold struct {
	JobID     int64      `json:"job_id"`
	UserID    int64      `json:"user_id"`
	Amount    int64      `json:"amount"`
	State     HoldState  `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}
