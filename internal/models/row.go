package models

import "time"

// NestedItem wraps a scalar so list fields land as list-of-records in the
// destination warehouse schema.
type NestedItem struct {
	Item string `json:"item"`
}

// NestedList is the warehouse representation of a string list.
type NestedList []NestedItem

// ToNestedList converts a plain string slice to the nested form.
func ToNestedList(values []string) NestedList {
	if len(values) == 0 {
		return nil
	}
	out := make(NestedList, len(values))
	for i, v := range values {
		out[i] = NestedItem{Item: v}
	}
	return out
}

// EventRow is the flat record appended to the sink, one per visited event.
// Payload, ChoiceArgument, ExerciseResult and ContractKey are serialized
// JSON blobs; the warehouse treats them as opaque text.
type EventRow struct {
	EventID        string    `json:"event_id"`
	UpdateID       string    `json:"update_id"`
	MigrationEpoch int64     `json:"migration_epoch"`
	RecordTime     time.Time `json:"record_time"`
	TemplateID     string    `json:"template_id"`
	EventKind      string    `json:"event_kind"`
	ContractID     string    `json:"contract_id"`

	Choice    *string `json:"choice"`
	Consuming *bool   `json:"consuming"`

	Signatories    NestedList `json:"signatories"`
	Observers      NestedList `json:"observers"`
	ActingParties  NestedList `json:"acting_parties"`
	WitnessParties NestedList `json:"witness_parties"`
	ChildEventIDs  NestedList `json:"child_event_ids"`

	Payload        string `json:"payload,omitempty"`
	ChoiceArgument string `json:"choice_argument,omitempty"`
	ExerciseResult string `json:"exercise_result,omitempty"`
	ContractKey    string `json:"contract_key,omitempty"`
}
