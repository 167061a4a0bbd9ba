package models

import "time"

// Vote is one ballot cast against a vote request.
type Vote struct {
	Voter      string    `json:"voter"`
	Accept     bool      `json:"accept"`
	Reason     string    `json:"reason,omitempty"`
	EventID    string    `json:"event_id"`
	RecordTime time.Time `json:"record_time"`
}

// GovernanceDecision accumulates the votes cast for one vote request.
// Outcome stays empty until the request is resolved.
type GovernanceDecision struct {
	VoteRequestID string     `json:"vote_request_id"`
	ContractID    string     `json:"contract_id"`
	Requester     string     `json:"requester,omitempty"`
	Action        string     `json:"action,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Votes         []Vote     `json:"votes"`
	Outcome       string     `json:"outcome,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}
