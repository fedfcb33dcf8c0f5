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
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"

	model2 "github.com/dealseal/dealseal/api/model"
	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/model"
)

// OpenDeal creates a pending deal inside a conversation.
//
// Responses:
// - 400 Bad Request: invalid JSON or missing fields.
// - 403 Forbidden: the user is not a participant of the conversation.
// - 409 Conflict: the conversation or subject already has an active deal.
// - 201 Created: the pending deal.
func (a Api) OpenDeal(c *gin.Context) {
	var newDeal model2.OpenDeal
	if err := c.ShouldBindJSON(&newDeal); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newDeal.ValidateOpenDeal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.dealseal.OpenDeal(c.Request.Context(), newDeal.ConversationID, newDeal.SubjectID, newDeal.UserID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ConfirmDeal records the caller's acknowledgment of the deal. Confirming a
// deal that already reached CONFIRMED succeeds with the current state.
func (a Api) ConfirmDeal(c *gin.Context) {
	a.transition(c, a.dealseal.ConfirmDeal)
}

// DenyDeal records the counterparty's advisory denial. The deal stays
// pending.
func (a Api) DenyDeal(c *gin.Context) {
	a.transition(c, a.dealseal.DenyDeal)
}

// CancelDeal withdraws a pending deal. Initiator only.
func (a Api) CancelDeal(c *gin.Context) {
	a.transition(c, a.dealseal.CancelDeal)
}

// DisputeDeal escalates a pending deal to DISPUTED and opens a support
// ticket. Reason and description are required.
func (a Api) DisputeDeal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var dispute model2.DisputeDeal
	if err := c.ShouldBindJSON(&dispute); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := dispute.ValidateDisputeDeal(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.dealseal.DisputeDeal(c.Request.Context(), id, dispute.UserID, dispute.Reason, dispute.Description)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDeal retrieves a single deal by ID.
func (a Api) GetDeal(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.dealseal.GetDeal(c.Request.Context(), id)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetDealsForUser lists the deals in conversations the user participates
// in. Supports ?status=, ?limit= and ?offset=.
func (a Api) GetDealsForUser(c *gin.Context) {
	userID, passed := c.Params.Get("user_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required. pass user_id in the route /:user_id"})
		return
	}

	status := c.Query("status")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	resp, err := a.dealseal.GetDealsForUser(c.Request.Context(), userID, status, limit, offset)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreateConversation registers a conversation's participant projection.
func (a Api) CreateConversation(c *gin.Context) {
	var newConversation model2.CreateConversation
	if err := c.ShouldBindJSON(&newConversation); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := newConversation.ValidateCreateConversation(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.dealseal.RegisterConversation(c.Request.Context(), newConversation.ToConversation())
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// transition handles the confirm, deny and cancel endpoints, which share a
// body shape and differ only in the engine call.
func (a Api) transition(c *gin.Context, op func(ctx context.Context, dealID, actor string) (*model.Deal, error)) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var action model2.DealAction
	if err := c.ShouldBindJSON(&action); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := action.ValidateDealAction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := op(c.Request.Context(), id, action.UserID)
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}
