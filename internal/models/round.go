package models

import "time"

// RoundStatus is one of the three mining-round lifecycle states.
type RoundStatus string

const (
	RoundOpen    RoundStatus = "open"
	RoundIssuing RoundStatus = "issuing"
	RoundClosed  RoundStatus = "closed"
)

// Rank orders statuses along the expected open -> issuing -> closed
// lifecycle. Unknown statuses rank below open.
func (s RoundStatus) Rank() int {
	switch s {
	case RoundOpen:
		return 1
	case RoundIssuing:
		return 2
	case RoundClosed:
		return 3
	default:
		return 0
	}
}

// MiningRoundState tracks one round's lifecycle as observed from the
// stream. Each transition is stamped with the record time at which the
// corresponding round contract was first seen.
type MiningRoundState struct {
	Round      int64       `json:"round"`
	Status     RoundStatus `json:"status"`
	ContractID string      `json:"contract_id"`

	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	IssuingAt *time.Time `json:"issuing_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}
