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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOpenDeal(t *testing.T) {
	d := &OpenDeal{ConversationID: "conv_1", UserID: "user_a"}
	assert.NoError(t, d.ValidateOpenDeal())

	d = &OpenDeal{UserID: "user_a"}
	err := d.ValidateOpenDeal()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "conversation_id")

	d = &OpenDeal{ConversationID: "conv_1"}
	err = d.ValidateOpenDeal()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")
}

func TestValidateDealAction(t *testing.T) {
	a := &DealAction{UserID: "user_a"}
	assert.NoError(t, a.ValidateDealAction())

	a = &DealAction{}
	assert.Error(t, a.ValidateDealAction())
}

func TestValidateDisputeDeal(t *testing.T) {
	d := &DisputeDeal{UserID: "user_a", Reason: "item not received", Description: "Paid, nothing arrived."}
	assert.NoError(t, d.ValidateDisputeDeal())

	d = &DisputeDeal{UserID: "user_a", Description: "Paid, nothing arrived."}
	err := d.ValidateDisputeDeal()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "reason")

	d = &DisputeDeal{UserID: "user_a", Reason: "item not received"}
	err = d.ValidateDisputeDeal()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "description")
}

func TestValidateCreateConversation(t *testing.T) {
	c := &CreateConversation{ParticipantA: "user_a", ParticipantB: "user_b"}
	assert.NoError(t, c.ValidateCreateConversation())

	c = &CreateConversation{ParticipantA: "user_a"}
	assert.Error(t, c.ValidateCreateConversation())
}

func TestToConversation(t *testing.T) {
	c := &CreateConversation{
		ConversationID: "conv_1",
		ParticipantA:   "user_a",
		ParticipantB:   "user_b",
		SubjectID:      "lst_1",
		SubjectOwner:   "user_b",
	}

	conversation := c.ToConversation()
	assert.Equal(t, "conv_1", conversation.ConversationID)
	assert.Equal(t, "user_a", conversation.ParticipantA)
	assert.Equal(t, "user_b", conversation.ParticipantB)
	assert.Equal(t, "lst_1", conversation.SubjectID)
	assert.Equal(t, "user_b", conversation.SubjectOwner)
}
