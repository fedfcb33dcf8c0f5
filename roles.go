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

package dealseal

import (
	"github.com/dealseal/dealseal/model"
)

// ResolveRole determines the standing of userID for deal purposes. It is a
// pure lookup over the conversation's fixed participant pair (including the
// listing owner for conversations created from a listing) and the deal's
// recorded opener; it never touches storage and holds no lock.
//
// With no deal yet (the open path) any participant resolves to initiator,
// since whoever opens becomes the initiating party.
func ResolveRole(conversation *model.Conversation, deal *model.Deal, userID string) model.Role {
	if conversation == nil || !conversation.HasParticipant(userID) {
		return model.RoleNone
	}
	if deal == nil {
		return model.RoleInitiator
	}
	if deal.InitiatedBy == userID {
		return model.RoleInitiator
	}
	return model.RoleCounterparty
}

// DealCounterparty returns the participant on the other side of the deal
// from its initiator.
func DealCounterparty(conversation *model.Conversation, deal *model.Deal) string {
	return conversation.OtherParticipant(deal.InitiatedBy)
}
