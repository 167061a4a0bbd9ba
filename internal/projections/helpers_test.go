package projections

import (
	"time"

	"ledgersync/internal/models"
)

var t0 = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time {
	return t0.Add(offset)
}

func createdEvent(templateID, contractID string, payload map[string]any) models.Event {
	return models.Event{
		Kind:       models.EventCreated,
		TemplateID: templateID,
		ContractID: contractID,
		Payload:    payload,
	}
}

func exercisedEvent(templateID, contractID, choice string, consuming bool, arg map[string]any) models.Event {
	ev := models.Event{
		Kind:       models.EventExercised,
		TemplateID: templateID,
		ContractID: contractID,
		Choice:     choice,
		Consuming:  consuming,
	}
	if arg != nil {
		ev.ChoiceArgument = arg
	}
	return ev
}

func archivedEvent(templateID, contractID string) models.Event {
	return models.Event{
		Kind:       models.EventArchived,
		TemplateID: templateID,
		ContractID: contractID,
	}
}
