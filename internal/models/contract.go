package models

import "time"

// ContractState is the Contract Registry's view of one contract's
// lifecycle. A contract is created once, optionally archived once, and is
// only ever removed by explicit pruning.
type ContractState struct {
	ContractID string         `json:"contract_id"`
	TemplateID string         `json:"template_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
	IsActive   bool           `json:"is_active"`

	// Provenance of the creating event, kept for audit queries.
	CreatedEventID  string `json:"created_event_id"`
	CreatedUpdateID string `json:"created_update_id"`
}
