package projections

import (
	"time"

	"ledgersync/internal/eventtree"
	"ledgersync/internal/models"
)

// Summary is the structured result of folding updates into a Set.
type Summary struct {
	UpdatesProcessed    int   `json:"updates_processed"`
	EventsProcessed     int   `json:"events_processed"`
	ContractsTotal      int   `json:"contracts_total"`
	ContractsActive     int   `json:"contracts_active"`
	BalanceOwners       int   `json:"balance_owners"`
	RoundsTracked       int   `json:"rounds_tracked"`
	CurrentRound        int64 `json:"current_round"`
	GovernanceDecisions int   `json:"governance_decisions"`
	ErrorsEncountered   int   `json:"errors_encountered"`
}

// Set owns one accumulator of each kind. Callers construct one Set per
// ingestion context; there is no shared global state, so independent
// backfills over disjoint epoch ranges can each carry their own Set.
type Set struct {
	Contracts  *ContractRegistry
	Balances   *BalanceLedger
	Rounds     *MiningRounds
	Governance *GovernanceTracker

	updatesProcessed int
	eventsProcessed  int
	skipped          int
}

// NewSet creates a Set with empty accumulators.
func NewSet() *Set {
	return &Set{
		Contracts:  NewContractRegistry(),
		Balances:   NewBalanceLedger(),
		Rounds:     NewMiningRounds(),
		Governance: NewGovernanceTracker(),
	}
}

// Apply feeds one canonical event to every accumulator. Accumulators
// ignore events they do not recognize and recover malformed ones locally,
// so Apply never fails.
func (s *Set) Apply(ev models.Event, eventID, updateID string, recordTime time.Time) {
	s.eventsProcessed++
	s.Contracts.Apply(ev, eventID, updateID, recordTime)
	s.Balances.Apply(ev, eventID, updateID, recordTime)
	s.Rounds.Apply(ev, eventID, updateID, recordTime)
	s.Governance.Apply(ev, eventID, updateID, recordTime)
}

// ApplyUpdate walks one update in preorder and applies every event.
func (s *Set) ApplyUpdate(u *models.Update) {
	s.updatesProcessed++
	s.skipped += eventtree.Walk(u, func(v eventtree.Visit) bool {
		s.Apply(v.Event, v.EventID, u.UpdateID, u.RecordTime)
		return true
	})
}

// Process folds a batch of updates and returns the resulting summary.
func (s *Set) Process(updates []*models.Update) Summary {
	for _, u := range updates {
		s.ApplyUpdate(u)
	}
	return s.Summary()
}

// Summary snapshots the current derived state counters.
func (s *Set) Summary() Summary {
	return Summary{
		UpdatesProcessed:    s.updatesProcessed,
		EventsProcessed:     s.eventsProcessed,
		ContractsTotal:      s.Contracts.Len(),
		ContractsActive:     s.Contracts.ActiveCount(),
		BalanceOwners:       len(s.Balances.Owners()),
		RoundsTracked:       s.Rounds.Count(),
		CurrentRound:        s.Rounds.CurrentRound(),
		GovernanceDecisions: s.Governance.Count(),
		ErrorsEncountered:   s.ErrorsEncountered(),
	}
}

// ErrorsEncountered totals the anomalies recovered across accumulators
// plus event tree nodes skipped during traversal.
func (s *Set) ErrorsEncountered() int {
	return s.skipped +
		s.Contracts.Anomalies() +
		s.Balances.Dropped() +
		s.Rounds.Anomalies() +
		s.Governance.Anomalies()
}
