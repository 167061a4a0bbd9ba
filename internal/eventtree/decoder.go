// Package eventtree normalizes the source API's event encodings into the
// canonical variant and provides preorder traversal over an update's
// parent/child event tree. The decoder never fails: unrecognized or
// malformed input is emitted as an unknown event and counted by the
// caller, so schema drift upstream cannot abort a run.
package eventtree

import (
	"encoding/json"
	"time"

	"ledgersync/internal/models"
)

// WireUpdate is the raw page-fetcher representation of one update before
// normalization. Event values stay raw JSON because the API has shipped
// two incompatible event encodings.
type WireUpdate struct {
	UpdateID     string                     `json:"update_id"`
	MigrationID  int64                      `json:"migration_id"`
	RecordTime   string                     `json:"record_time"`
	RootEventIDs []string                   `json:"root_event_ids"`
	EventsByID   map[string]json.RawMessage `json:"events_by_id"`
}

// wrapper keys used by the nested-tag wire shape.
const (
	tagCreated   = "created_event"
	tagExercised = "exercised_event"
	tagArchived  = "archived_event"
)

// NormalizeUpdate converts a wire update into the canonical form. The
// returned count is the number of events that could not be fully parsed;
// those are still present with kind unknown.
func NormalizeUpdate(w WireUpdate) (*models.Update, int) {
	anomalies := 0

	recordTime, err := parseRecordTime(w.RecordTime)
	if err != nil {
		anomalies++
	}

	events := make(map[string]models.Event, len(w.EventsByID))
	for id, raw := range w.EventsByID {
		ev, ok := Normalize(raw)
		if !ok {
			anomalies++
		}
		events[id] = ev
	}

	return &models.Update{
		UpdateID:       w.UpdateID,
		MigrationEpoch: w.MigrationID,
		RecordTime:     recordTime,
		RootEventIDs:   w.RootEventIDs,
		EventsByID:     events,
	}, anomalies
}

// Normalize converts one raw wire event into the canonical variant. It
// supports both wire shapes: an object wrapping the event under an
// explicit type tag, and an object carrying type-discriminating fields at
// the top level. Resolution priority for the flat shape: a creation
// argument implies created, a choice implies exercised, an archival
// marker implies archived, anything else is unknown (still emitted).
// The second return value is false when the input could not be parsed.
func Normalize(raw json.RawMessage) (models.Event, bool) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Event{Kind: models.EventUnknown}, false
	}

	// Nested-tag shape: unwrap and trust the tag.
	if inner, ok := objectField(fields, tagCreated); ok {
		return decodeCreated(inner), true
	}
	if inner, ok := objectField(fields, tagExercised); ok {
		return decodeExercised(inner), true
	}
	if inner, ok := objectField(fields, tagArchived); ok {
		return decodeArchived(inner), true
	}

	// Flat shape: discriminate by field presence, in priority order.
	switch {
	case hasAny(fields, "create_arguments", "create_argument"):
		return decodeCreated(fields), true
	case hasAny(fields, "choice"):
		return decodeExercised(fields), true
	case isArchivalMarker(fields):
		return decodeArchived(fields), true
	default:
		return models.Event{
			Kind:       models.EventUnknown,
			TemplateID: stringField(fields, "template_id"),
			ContractID: stringField(fields, "contract_id"),
		}, true
	}
}

func decodeCreated(fields map[string]any) models.Event {
	payload, _ := objectField(fields, "create_arguments")
	if payload == nil {
		payload, _ = objectField(fields, "create_argument")
	}
	return models.Event{
		Kind:           models.EventCreated,
		TemplateID:     stringField(fields, "template_id"),
		ContractID:     stringField(fields, "contract_id"),
		Payload:        payload,
		Signatories:    stringSlice(fields, "signatories"),
		Observers:      stringSlice(fields, "observers"),
		WitnessParties: stringSlice(fields, "witness_parties"),
		ContractKey:    fields["contract_key"],
	}
}

func decodeExercised(fields map[string]any) models.Event {
	return models.Event{
		Kind:           models.EventExercised,
		TemplateID:     stringField(fields, "template_id"),
		ContractID:     stringField(fields, "contract_id"),
		Choice:         stringField(fields, "choice"),
		Consuming:      boolField(fields, "consuming"),
		ActingParties:  stringSlice(fields, "acting_parties"),
		WitnessParties: stringSlice(fields, "witness_parties"),
		ChildEventIDs:  stringSlice(fields, "child_event_ids"),
		ChoiceArgument: fields["choice_argument"],
		ExerciseResult: fields["exercise_result"],
	}
}

func decodeArchived(fields map[string]any) models.Event {
	return models.Event{
		Kind:           models.EventArchived,
		TemplateID:     stringField(fields, "template_id"),
		ContractID:     stringField(fields, "contract_id"),
		WitnessParties: stringSlice(fields, "witness_parties"),
	}
}

// isArchivalMarker detects the flat archival encodings seen upstream:
// an explicit boolean or an event_type discriminator.
func isArchivalMarker(fields map[string]any) bool {
	if v, ok := fields["archived"].(bool); ok && v {
		return true
	}
	return stringField(fields, "event_type") == tagArchived
}

func parseRecordTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func hasAny(fields map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func objectField(fields map[string]any, key string) (map[string]any, bool) {
	v, ok := fields[key].(map[string]any)
	return v, ok
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func boolField(fields map[string]any, key string) bool {
	b, _ := fields[key].(bool)
	return b
}

func stringSlice(fields map[string]any, key string) []string {
	raw, ok := fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
