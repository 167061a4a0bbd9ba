package projections

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgersync/internal/models"
)

// Two updates: one creates holding C1 for P1 (amount 10), the next
// transfers 4 from P1 to P2 and archives C1 as a child of the exercise.
// Afterwards the registry shows C1 inactive, the balance ledger nets
// P1 at 6 and P2 at 4, and exactly three events were processed.
func TestSetBackfillTwoUpdates(t *testing.T) {
	s := NewSet()

	u1 := &models.Update{
		UpdateID:     "u-1",
		RecordTime:   at(0),
		RootEventIDs: []string{"e-1"},
		EventsByID: map[string]models.Event{
			"e-1": createdEvent("pkg:Splice.Amulet:Amulet", "c-1", map[string]any{
				"owner":  "p1",
				"amount": "10.0",
			}),
		},
	}
	transfer := exercisedEvent("pkg:Splice.AmuletRules:AmuletRules", "c-rules", "AmuletRules_Transfer", false,
		map[string]any{"sender": "p1", "receiver": "p2", "amount": "4.0"})
	transfer.ChildEventIDs = []string{"e-3"}
	u2 := &models.Update{
		UpdateID:     "u-2",
		RecordTime:   at(time.Minute),
		RootEventIDs: []string{"e-2"},
		EventsByID: map[string]models.Event{
			"e-2": transfer,
			"e-3": archivedEvent("pkg:Splice.Amulet:Amulet", "c-1"),
		},
	}

	summary := s.Process([]*models.Update{u1, u2})

	assert.Equal(t, 2, summary.UpdatesProcessed)
	assert.Equal(t, 3, summary.EventsProcessed)
	assert.Zero(t, summary.ErrorsEncountered)

	state, ok := s.Contracts.Get("c-1")
	require.True(t, ok)
	assert.False(t, state.IsActive)

	assert.Zero(t, s.Balances.Balance("p1").Cmp(ratOf(t, "6")))
	assert.Zero(t, s.Balances.Balance("p2").Cmp(ratOf(t, "4")))
}

// A malformed event never aborts the fold; it shows up as at most one
// recovered error in the summary and every other event still lands.
func TestSetMalformedEventRecoveredLocally(t *testing.T) {
	s := NewSet()

	u := &models.Update{
		UpdateID:     "u-1",
		RecordTime:   at(0),
		RootEventIDs: []string{"e-1", "e-2"},
		EventsByID: map[string]models.Event{
			// Transfer with a garbage amount.
			"e-1": exercisedEvent("pkg:M:T", "c-1", "T_Transfer", false,
				map[string]any{"sender": "p1", "receiver": "p2", "amount": "lots"}),
			"e-2": createdEvent("pkg:Splice.Amulet:Amulet", "c-2", map[string]any{
				"owner": "p3", "amount": "1.0",
			}),
		},
	}

	summary := s.Process([]*models.Update{u})

	assert.Equal(t, 2, summary.EventsProcessed)
	assert.Equal(t, 1, summary.ErrorsEncountered)
	assert.Zero(t, s.Balances.Balance("p3").Cmp(ratOf(t, "1")))
}

func TestSetMissingChildCountedAsError(t *testing.T) {
	s := NewSet()

	root := createdEvent("pkg:M:T", "c-1", nil)
	root.ChildEventIDs = []string{"e-gone"}
	u := &models.Update{
		UpdateID:     "u-1",
		RecordTime:   at(0),
		RootEventIDs: []string{"e-1"},
		EventsByID:   map[string]models.Event{"e-1": root},
	}

	summary := s.Process([]*models.Update{u})

	assert.Equal(t, 1, summary.EventsProcessed)
	assert.Equal(t, 1, summary.ErrorsEncountered)
}

func TestSetSummaryCounters(t *testing.T) {
	s := NewSet()

	u := &models.Update{
		UpdateID:     "u-1",
		RecordTime:   at(0),
		RootEventIDs: []string{"e-1", "e-2", "e-3"},
		EventsByID: map[string]models.Event{
			"e-1": createdEvent("pkg:Splice.Amulet:Amulet", "c-1", map[string]any{
				"owner": "p1", "amount": "2.0",
			}),
			"e-2": roundEvent("OpenMiningRound", "9"),
			"e-3": voteRequestEvent("c-req", "track-1"),
		},
	}

	summary := s.Process([]*models.Update{u})

	assert.Equal(t, 1, summary.UpdatesProcessed)
	assert.Equal(t, 3, summary.EventsProcessed)
	assert.Equal(t, 3, summary.ContractsTotal)
	assert.Equal(t, 3, summary.ContractsActive)
	assert.Equal(t, 1, summary.BalanceOwners)
	assert.Equal(t, 1, summary.RoundsTracked)
	assert.Equal(t, int64(9), summary.CurrentRound)
	assert.Equal(t, 1, summary.GovernanceDecisions)
	assert.Zero(t, summary.ErrorsEncountered)
}
