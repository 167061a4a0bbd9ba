package projections

import (
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"time"

	"ledgersync/internal/extraction"
	"ledgersync/internal/models"
)

// BalanceLedger folds value movements into per-owner balances. Records
// are append-only; a balance is the fold-sum over an owner's records.
// Two causes are recognized: direct creation of a value-holding contract
// credits the owner, and a transfer exercise debits the sender while
// crediting the receiver. Field names are resolved through the ordered
// candidate lists because upstream schemas evolve.
type BalanceLedger struct {
	records  map[string][]models.BalanceRecord
	balances map[string]*big.Rat
	dropped  int
}

// NewBalanceLedger creates an empty ledger.
func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{
		records:  make(map[string][]models.BalanceRecord),
		balances: make(map[string]*big.Rat),
	}
}

// Apply folds one canonical event into the ledger.
func (l *BalanceLedger) Apply(ev models.Event, eventID, updateID string, recordTime time.Time) {
	switch {
	case ev.Kind == models.EventCreated && isHoldingTemplate(ev.TemplateID):
		l.applyCreation(ev, eventID, updateID, recordTime)
	case ev.Kind == models.EventExercised && isTransferChoice(ev.Choice):
		l.applyTransfer(ev, eventID, updateID, recordTime)
	}
}

func (l *BalanceLedger) applyCreation(ev models.Event, eventID, updateID string, recordTime time.Time) {
	owner, ok := extraction.String(ev.Payload, ownerKeys...)
	if !ok {
		l.drop("holding creation without owner", eventID, updateID)
		return
	}
	amount, ok := extraction.Amount(ev.Payload, amountKeys...)
	if !ok {
		l.drop("holding creation without parseable amount", eventID, updateID)
		return
	}
	l.append(models.BalanceRecord{
		Owner:      owner,
		Amount:     amount,
		RecordTime: recordTime,
		Cause:      models.BalanceCauseCreation,
		UpdateID:   updateID,
		EventID:    eventID,
	})
}

func (l *BalanceLedger) applyTransfer(ev models.Event, eventID, updateID string, recordTime time.Time) {
	arg, ok := ev.ChoiceArgument.(map[string]any)
	if !ok {
		l.drop("transfer without structured argument", eventID, updateID)
		return
	}
	sender, okSender := extraction.String(arg, senderKeys...)
	receiver, okReceiver := extraction.String(arg, receiverKeys...)
	amount, okAmount := extraction.Amount(arg, amountKeys...)
	if !okSender || !okReceiver || !okAmount {
		l.drop("unparseable transfer", eventID, updateID)
		return
	}

	l.append(models.BalanceRecord{
		Owner:      sender,
		Amount:     new(big.Rat).Neg(amount),
		RecordTime: recordTime,
		Cause:      models.BalanceCauseTransfer,
		UpdateID:   updateID,
		EventID:    eventID,
	})
	l.append(models.BalanceRecord{
		Owner:      receiver,
		Amount:     new(big.Rat).Set(amount),
		RecordTime: recordTime,
		Cause:      models.BalanceCauseTransfer,
		UpdateID:   updateID,
		EventID:    eventID,
	})
}

func (l *BalanceLedger) append(rec models.BalanceRecord) {
	l.records[rec.Owner] = append(l.records[rec.Owner], rec)
	total, ok := l.balances[rec.Owner]
	if !ok {
		total = new(big.Rat)
		l.balances[rec.Owner] = total
	}
	total.Add(total, rec.Amount)
}

func (l *BalanceLedger) drop(reason, eventID, updateID string) {
	l.dropped++
	slog.Warn("balance record dropped",
		"reason", reason,
		"event_id", eventID,
		"update_id", updateID,
	)
}

// Balance returns the fold-sum for an owner; zero for unknown owners.
func (l *BalanceLedger) Balance(owner string) *big.Rat {
	if total, ok := l.balances[owner]; ok {
		return new(big.Rat).Set(total)
	}
	return new(big.Rat)
}

// Owners returns all owners with at least one record, sorted.
func (l *BalanceLedger) Owners() []string {
	owners := make([]string, 0, len(l.records))
	for owner := range l.records {
		owners = append(owners, owner)
	}
	slices.Sort(owners)
	return owners
}

// Records returns the append-only record list for an owner.
func (l *BalanceLedger) Records(owner string) []models.BalanceRecord {
	return slices.Clone(l.records[owner])
}

// Dropped returns the count of unparseable movements recovered locally.
func (l *BalanceLedger) Dropped() int {
	return l.dropped
}

func isHoldingTemplate(templateID string) bool {
	return slices.Contains(holdingTemplates, entityName(templateID))
}

func isTransferChoice(choice string) bool {
	return strings.Contains(choice, transferChoiceFragment)
}
