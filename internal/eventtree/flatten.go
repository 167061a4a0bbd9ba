package eventtree

import (
	"encoding/json"

	"ledgersync/internal/models"
)

// Row builds the flat sink record for one visited event.
func Row(u *models.Update, v Visit) models.EventRow {
	ev := v.Event

	row := models.EventRow{
		EventID:        v.EventID,
		UpdateID:       u.UpdateID,
		MigrationEpoch: u.MigrationEpoch,
		RecordTime:     u.RecordTime,
		TemplateID:     ev.TemplateID,
		EventKind:      string(ev.Kind),
		ContractID:     ev.ContractID,
		Signatories:    models.ToNestedList(ev.Signatories),
		Observers:      models.ToNestedList(ev.Observers),
		ActingParties:  models.ToNestedList(ev.ActingParties),
		WitnessParties: models.ToNestedList(ev.WitnessParties),
		ChildEventIDs:  models.ToNestedList(ev.ChildEventIDs),
		ChoiceArgument: asBlob(ev.ChoiceArgument),
		ExerciseResult: asBlob(ev.ExerciseResult),
		ContractKey:    asBlob(ev.ContractKey),
	}

	if ev.Payload != nil {
		row.Payload = asBlob(ev.Payload)
	}
	if ev.Kind == models.EventExercised {
		choice := ev.Choice
		consuming := ev.Consuming
		row.Choice = &choice
		row.Consuming = &consuming
	}
	return row
}

// Flatten produces one row per visited event plus the skipped-child count.
func Flatten(u *models.Update) ([]models.EventRow, int) {
	rows := make([]models.EventRow, 0, len(u.EventsByID))
	skipped := Walk(u, func(v Visit) bool {
		rows = append(rows, Row(u, v))
		return true
	})
	return rows, skipped
}

// asBlob serializes a payload-like value to an opaque JSON text blob.
// Empty string means the field was absent; serialization failures are
// treated the same way rather than aborting the row.
func asBlob(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
