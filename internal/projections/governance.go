package projections

import (
	"log/slog"
	"strings"
	"time"

	"ledgersync/internal/extraction"
	"ledgersync/internal/models"
)

// GovernanceTracker accumulates vote requests and the votes cast against
// them. A vote referencing a request that was never seen as created is
// held as orphaned rather than dropped; if the request shows up later the
// orphans are adopted into the decision.
type GovernanceTracker struct {
	decisions map[string]*models.GovernanceDecision
	orphaned  map[string][]models.Vote
	anomalies int
}

// NewGovernanceTracker creates an empty tracker.
func NewGovernanceTracker() *GovernanceTracker {
	return &GovernanceTracker{
		decisions: make(map[string]*models.GovernanceDecision),
		orphaned:  make(map[string][]models.Vote),
	}
}

// Apply folds one canonical event into the tracker.
func (g *GovernanceTracker) Apply(ev models.Event, eventID, updateID string, recordTime time.Time) {
	switch {
	case ev.Kind == models.EventCreated && entityName(ev.TemplateID) == voteRequestTemplate:
		g.applyRequest(ev, recordTime)
	case ev.Kind == models.EventExercised && strings.Contains(ev.Choice, castVoteChoiceFragment):
		g.applyVote(ev, eventID, updateID, recordTime)
	case ev.Kind == models.EventExercised && ev.Consuming:
		g.applyResolution(ev, recordTime)
	}
}

func (g *GovernanceTracker) applyRequest(ev models.Event, recordTime time.Time) {
	// Requests are keyed by their tracking id when present so votes cast
	// against a re-created request contract still land on one decision.
	id, ok := extraction.String(ev.Payload, trackingKeys...)
	if !ok {
		id = ev.ContractID
	}
	if id == "" {
		g.anomalies++
		return
	}
	if _, exists := g.decisions[id]; exists {
		return
	}

	requester, _ := extraction.String(ev.Payload, requesterKeys...)
	action, _ := extraction.String(ev.Payload, actionKeys...)
	decision := &models.GovernanceDecision{
		VoteRequestID: id,
		ContractID:    ev.ContractID,
		Requester:     requester,
		Action:        action,
		CreatedAt:     recordTime,
	}

	// Adopt votes that arrived before the request.
	if votes, ok := g.orphaned[id]; ok {
		decision.Votes = votes
		delete(g.orphaned, id)
	}
	g.decisions[id] = decision
	if decision.ContractID != "" && decision.ContractID != id {
		// Resolutions exercise the request contract itself.
		g.decisions[decision.ContractID] = decision
	}
}

func (g *GovernanceTracker) applyVote(ev models.Event, eventID, updateID string, recordTime time.Time) {
	arg, _ := ev.ChoiceArgument.(map[string]any)

	id, ok := extraction.String(arg, requestIDKeys...)
	if !ok {
		id = ev.ContractID
	}
	if id == "" {
		g.anomalies++
		slog.Warn("cast vote without request reference", "event_id", eventID, "update_id", updateID)
		return
	}

	voter, _ := extraction.String(arg, voterKeys...)
	accept := false
	if v, ok := extraction.Field(arg, acceptKeys...); ok {
		accept, _ = v.(bool)
	}
	reason, _ := extraction.String(arg, reasonKeys...)

	vote := models.Vote{
		Voter:      voter,
		Accept:     accept,
		Reason:     reason,
		EventID:    eventID,
		RecordTime: recordTime,
	}

	if decision, ok := g.decisions[id]; ok {
		decision.Votes = append(decision.Votes, vote)
		return
	}

	g.orphaned[id] = append(g.orphaned[id], vote)
	g.anomalies++
	slog.Warn("vote for unknown request recorded as orphaned",
		"vote_request_id", id,
		"event_id", eventID,
		"update_id", updateID,
	)
}

// applyResolution closes a decision when its request contract is consumed
// by a non-vote choice, e.g. VoteRequest_Accept or VoteRequest_Expire.
func (g *GovernanceTracker) applyResolution(ev models.Event, recordTime time.Time) {
	decision, ok := g.decisions[ev.ContractID]
	if !ok || decision.Outcome != "" {
		return
	}
	outcome := ev.Choice
	if i := strings.LastIndex(outcome, "_"); i >= 0 {
		outcome = outcome[i+1:]
	}
	decision.Outcome = strings.ToLower(outcome)
	resolvedAt := recordTime
	decision.ResolvedAt = &resolvedAt
}

// Decision returns the decision for a vote request id.
func (g *GovernanceTracker) Decision(id string) (models.GovernanceDecision, bool) {
	decision, ok := g.decisions[id]
	if !ok {
		return models.GovernanceDecision{}, false
	}
	return *decision, true
}

// Count returns the number of started decisions. Orphaned votes do not
// count until a matching request appears.
func (g *GovernanceTracker) Count() int {
	seen := make(map[*models.GovernanceDecision]bool, len(g.decisions))
	for _, d := range g.decisions {
		seen[d] = true
	}
	return len(seen)
}

// Orphaned returns the votes held for a request id never seen as created.
func (g *GovernanceTracker) Orphaned(id string) []models.Vote {
	return g.orphaned[id]
}

// OrphanedCount returns the total number of orphaned votes held.
func (g *GovernanceTracker) OrphanedCount() int {
	n := 0
	for _, votes := range g.orphaned {
		n += len(votes)
	}
	return n
}

// Anomalies returns the count of locally recovered malformed inputs.
func (g *GovernanceTracker) Anomalies() int {
	return g.anomalies
}
