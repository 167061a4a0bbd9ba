package projections

import (
	"log/slog"
	"time"

	"ledgersync/internal/models"
)

// ContractRegistry tracks every observed contract's lifecycle. Created
// inserts an active entry; Archived marks it inactive with a stamp.
// Entries are removed only by explicit pruning, never implicitly.
type ContractRegistry struct {
	contracts map[string]*models.ContractState
	anomalies int
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{contracts: make(map[string]*models.ContractState)}
}

// Apply folds one canonical event into the registry.
func (r *ContractRegistry) Apply(ev models.Event, eventID, updateID string, recordTime time.Time) {
	switch ev.Kind {
	case models.EventCreated:
		r.applyCreated(ev, eventID, updateID, recordTime)
	case models.EventArchived:
		r.applyArchived(ev, updateID, recordTime)
	}
}

func (r *ContractRegistry) applyCreated(ev models.Event, eventID, updateID string, recordTime time.Time) {
	if ev.ContractID == "" {
		r.anomalies++
		slog.Warn("created event without contract id", "event_id", eventID, "update_id", updateID)
		return
	}
	// Re-delivery of an already registered creation is normal under
	// at-least-once ingestion.
	if _, exists := r.contracts[ev.ContractID]; exists {
		return
	}
	r.contracts[ev.ContractID] = &models.ContractState{
		ContractID:      ev.ContractID,
		TemplateID:      ev.TemplateID,
		Payload:         ev.Payload,
		CreatedAt:       recordTime,
		IsActive:        true,
		CreatedEventID:  eventID,
		CreatedUpdateID: updateID,
	}
}

func (r *ContractRegistry) applyArchived(ev models.Event, updateID string, recordTime time.Time) {
	state, ok := r.contracts[ev.ContractID]
	if !ok {
		r.anomalies++
		slog.Warn("archive of unknown contract ignored",
			"contract_id", ev.ContractID,
			"update_id", updateID,
		)
		return
	}
	if !state.IsActive {
		return
	}
	archivedAt := recordTime
	state.ArchivedAt = &archivedAt
	state.IsActive = false
}

// Get returns the state for a contract id.
func (r *ContractRegistry) Get(contractID string) (models.ContractState, bool) {
	state, ok := r.contracts[contractID]
	if !ok {
		return models.ContractState{}, false
	}
	return *state, true
}

// Len returns the number of tracked contracts, active or archived.
func (r *ContractRegistry) Len() int {
	return len(r.contracts)
}

// ActiveCount returns the number of contracts still active.
func (r *ContractRegistry) ActiveCount() int {
	n := 0
	for _, state := range r.contracts {
		if state.IsActive {
			n++
		}
	}
	return n
}

// Prune removes contracts archived before the cutoff and returns how many
// were dropped. This is the only way entries leave the registry.
func (r *ContractRegistry) Prune(before time.Time) int {
	n := 0
	for id, state := range r.contracts {
		if !state.IsActive && state.ArchivedAt != nil && state.ArchivedAt.Before(before) {
			delete(r.contracts, id)
			n++
		}
	}
	return n
}

// Anomalies returns the count of locally recovered malformed inputs.
func (r *ContractRegistry) Anomalies() int {
	return r.anomalies
}
