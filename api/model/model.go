/*
Copyright 2024 Dealseal Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dealseal/dealseal/model"
)

// OpenDeal is the request body for opening a deal in a conversation.
// SubjectID is optional; a conversation started from a listing supplies its
// own.
type OpenDeal struct {
	ConversationID string `json:"conversation_id"`
	SubjectID      string `json:"subject_id"`
	UserID         string `json:"user_id"`
}

// DealAction covers the confirm, deny and cancel request bodies, which only
// need the acting user.
type DealAction struct {
	UserID string `json:"user_id"`
}

// DisputeDeal is the request body for escalating a deal to a dispute.
type DisputeDeal struct {
	UserID      string `json:"user_id"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// CreateConversation registers the participant projection for a
// conversation owned by the chat service.
type CreateConversation struct {
	ConversationID string `json:"conversation_id"`
	ParticipantA   string `json:"participant_a"`
	ParticipantB   string `json:"participant_b"`
	SubjectID      string `json:"subject_id"`
	SubjectOwner   string `json:"subject_owner"`
}

func (d *OpenDeal) ValidateOpenDeal() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ConversationID, validation.Required),
		validation.Field(&d.UserID, validation.Required),
	)
}

func (d *DealAction) ValidateDealAction() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.UserID, validation.Required),
	)
}

func (d *DisputeDeal) ValidateDisputeDeal() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.UserID, validation.Required),
		validation.Field(&d.Reason, validation.Required),
		validation.Field(&d.Description, validation.Required),
	)
}

func (c *CreateConversation) ValidateCreateConversation() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ParticipantA, validation.Required),
		validation.Field(&c.ParticipantB, validation.Required),
	)
}

func (c *CreateConversation) ToConversation() *model.Conversation {
	return &model.Conversation{
		ConversationID: c.ConversationID,
		ParticipantA:   c.ParticipantA,
		ParticipantB:   c.ParticipantB,
		SubjectID:      c.SubjectID,
		SubjectOwner:   c.SubjectOwner,
	}
}
