package model

import (
	"encoding/json"
	"time"
)

// Deal is the central record of the confirmation engine: a two-party
// agreement inside a conversation that either side can mark as completed.
type Deal struct {
	ID                      int64      `json:"-"`
	DealID                  string     `json:"deal_id"`
	ConversationID          string     `json:"conversation_id"`
	SubjectID               string     `json:"subject_id,omitempty"`
	InitiatedBy             string     `json:"initiated_by"`
	InitiatorConfirmed      bool       `json:"initiator_confirmed"`
	CounterpartyConfirmed   bool       `json:"counterparty_confirmed"`
	InitiatorConfirmedAt    *time.Time `json:"initiator_confirmed_at,omitempty"`
	CounterpartyConfirmedAt *time.Time `json:"counterparty_confirmed_at,omitempty"`
	Status                  string     `json:"status"`
	AutoResolveAt           time.Time  `json:"auto_resolve_at"`
	CreatedAt               time.Time  `json:"created_at"`
}

func (deal *Deal) ToJSON() ([]byte, error) {
	return json.Marshal(deal)
}

// FullyConfirmed reports whether both parties have acknowledged the deal.
func (deal *Deal) FullyConfirmed() bool {
	return deal.InitiatorConfirmed && deal.CounterpartyConfirmed
}

// DealMutation describes the fields a guarded transition may change.
// Nil pointers leave the corresponding column untouched.
type DealMutation struct {
	Status                  *string
	InitiatorConfirmed      *bool
	CounterpartyConfirmed   *bool
	InitiatorConfirmedAt    *time.Time
	CounterpartyConfirmedAt *time.Time
}
