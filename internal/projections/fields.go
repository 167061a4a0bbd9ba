// Package projections holds the derived-state accumulators fed by the
// canonical event stream: contract registry, balance ledger, mining-round
// state machine, and governance decision tracker. Accumulators recover
// from malformed input locally, count it, and never abort the caller.
package projections

import "strings"

// Candidate field names, ordered newest schema first. These lists are the
// single reviewable place to extend when upstream templates evolve.
var (
	ownerKeys    = []string{"owner", "user", "holder"}
	senderKeys   = []string{"sender", "provider", "from"}
	receiverKeys = []string{"receiver", "beneficiary", "to"}
	amountKeys   = []string{"amount", "initialAmount", "quantity", "value"}
	roundKeys    = []string{"round", "roundNumber", "miningRound"}

	requesterKeys = []string{"requester", "proposer"}
	actionKeys    = []string{"action", "actionName", "actionRequiringConfirmation"}
	trackingKeys  = []string{"trackingCid", "voteRequestCid"}

	voterKeys     = []string{"voter", "sv", "party"}
	requestIDKeys = []string{"voteRequestCid", "requestCid", "requestId"}
	acceptKeys    = []string{"accept", "isAccepted"}
	reasonKeys    = []string{"reason", "reasonUrl", "comment"}
)

// Template entity names recognized by the accumulators.
var (
	holdingTemplates = []string{"Amulet", "LockedAmulet"}

	roundTemplates = map[string]string{
		"OpenMiningRound":    "open",
		"IssuingMiningRound": "issuing",
		"ClosedMiningRound":  "closed",
	}

	voteRequestTemplate = "VoteRequest"
)

// Choice name fragments recognized by the accumulators.
const (
	transferChoiceFragment = "Transfer"
	castVoteChoiceFragment = "CastVote"
)

// entityName returns the final segment of a fully qualified template id,
// e.g. "pkg:Splice.Amulet:Amulet" -> "Amulet".
func entityName(templateID string) string {
	if i := strings.LastIndexAny(templateID, ":."); i >= 0 {
		return templateID[i+1:]
	}
	return templateID
}
