package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger event types.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventAccountCorrected   = "account.corrected"
)

// LedgerEvent announces a committed change to an account balance.
// Amounts are carried as integer cents; the consumer reloads the account
// from the database for anything else it needs.
type LedgerEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	AccountID     int64     `json:"account_id"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	AmountCents   int64     `json:"amount"`
	BalanceCents  int64     `json:"balance"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event with a fresh id and the current time.
func NewLedgerEvent(eventType string, accountID, transactionID, amountCents, balanceCents int64) *LedgerEvent {
	return &LedgerEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		AccountID:     accountID,
		TransactionID: transactionID,
		AmountCents:   amountCents,
		BalanceCents:  balanceCents,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and checks the fields every consumer relies on.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted, EventAccountCorrected:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.AccountID <= 0 {
		return nil, fmt.Errorf("event %s has no account id", e.ID)
	}
	return &e, nil
}
