package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	ReferenceID string    `json:"reference_id"`
	AccountID   string    `json:"account_id"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	Details     any       `json:"details"`
}

// Logger emits a structured line for every money-affecting operation:
// purchases, refunds, deposit approvals, adjustments, voucher credits.
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogBalanceChange(referenceID, accountID string, amount int64, operation string) {
	event := Event{
		Timestamp:   time.Now(),
		EventType:   operation,
		ReferenceID: referenceID,
		AccountID:   accountID,
		Amount:      amount,
		Status:      "SUCCESS",
	}
	a.log(event)
}

func (a *Logger) LogAdminAction(adminID, operation, details string) {
	event := Event{
		Timestamp: time.Now(),
		EventType: operation,
		AccountID: adminID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	}
	a.log(event)
}

func (a *Logger) LogError(referenceID, accountID string, err error) {
	event := Event{
		Timestamp:   time.Now(),
		EventType:   "ERROR",
		ReferenceID: referenceID,
		AccountID:   accountID,
		Status:      "FAILED",
		Details:     map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
