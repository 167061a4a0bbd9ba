package models

import (
	"math/big"
	"time"
)

// BalanceCause labels why a balance record exists.
type BalanceCause string

const (
	// BalanceCauseCreation credits the owner of a newly created
	// value-holding contract.
	BalanceCauseCreation BalanceCause = "creation"
	// BalanceCauseTransfer debits the sender and credits the receiver of
	// a transfer exercise.
	BalanceCauseTransfer BalanceCause = "transfer"
)

// BalanceRecord is one append-only signed movement on an owner's balance.
// Records are never mutated; an owner's balance is the fold-sum over them.
// Amounts are exact rationals because upstream ships decimal strings.
type BalanceRecord struct {
	Owner      string       `json:"owner"`
	Amount     *big.Rat     `json:"-"`
	RecordTime time.Time    `json:"record_time"`
	Cause      BalanceCause `json:"cause"`
	UpdateID   string       `json:"update_id"`
	EventID    string       `json:"event_id"`
}
