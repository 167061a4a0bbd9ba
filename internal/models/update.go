package models

import "time"

// EventKind identifies the canonical event variant after wire normalization.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventExercised EventKind = "exercised"
	EventArchived  EventKind = "archived"
	EventUnknown   EventKind = "unknown"
)

// Event is the canonical tagged variant. The upstream API has shipped two
// incompatible encodings for the same logical events; the decoder folds both
// into this shape before any consumer sees them. Only the fields relevant to
// Kind are populated.
type Event struct {
	Kind       EventKind `json:"kind"`
	TemplateID string    `json:"template_id"`
	ContractID string    `json:"contract_id"`

	// Created
	Payload     map[string]any `json:"payload,omitempty"`
	Signatories []string       `json:"signatories,omitempty"`
	Observers   []string       `json:"observers,omitempty"`
	ContractKey any            `json:"contract_key,omitempty"`

	// Exercised
	Choice         string   `json:"choice,omitempty"`
	Consuming      bool     `json:"consuming,omitempty"`
	ActingParties  []string `json:"acting_parties,omitempty"`
	ChildEventIDs  []string `json:"child_event_ids,omitempty"`
	ChoiceArgument any      `json:"choice_argument,omitempty"`
	ExerciseResult any      `json:"exercise_result,omitempty"`

	WitnessParties []string `json:"witness_parties,omitempty"`
}

// Update is one ledger transaction or reassignment as returned by the
// source query API. RecordTime is non-decreasing within a migration epoch
// when fetched in order; epochs only increase across the stream.
type Update struct {
	UpdateID       string           `json:"update_id"`
	MigrationEpoch int64            `json:"migration_epoch"`
	RecordTime     time.Time        `json:"record_time"`
	RootEventIDs   []string         `json:"root_event_ids"`
	EventsByID     map[string]Event `json:"events_by_id"`
}

// Position returns the cursor covering this update.
func (u *Update) Position() Cursor {
	return Cursor{MigrationEpoch: u.MigrationEpoch, RecordTime: u.RecordTime}
}

// Page is one fetched batch of updates. An empty Updates slice signals
// exhaustion at the current epoch boundary. Anomalies counts wire events
// the decoder could not parse (they are still emitted as unknown).
type Page struct {
	Updates    []*Update
	NextCursor *Cursor
	Anomalies  int
}
