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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dealseal/dealseal/config"
	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/internal/notification"
	"github.com/dealseal/dealseal/model"
)

var (
	tracer = otel.Tracer("Deal engine")
)

const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusDisputed  = "DISPUTED"
	StatusCancelled = "CANCELLED"
)

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	logrus.Error(msg, err)
	return err
}

// OpenDeal creates a pending deal in the conversation with the opener's own
// side pre-confirmed. The store's unique indexes reject a second pending
// deal for the conversation and a second active deal for the subject.
func (d *Dealseal) OpenDeal(ctx context.Context, conversationID, subjectID, actor string) (*model.Deal, error) {
	ctx, span := tracer.Start(ctx, "Opening deal")
	defer span.End()

	conversation, err := d.datasource.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, logAndRecordError(span, "conversation lookup error: ", err)
	}

	if ResolveRole(conversation, nil, actor) == model.RoleNone {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, fmt.Sprintf("User '%s' is not a participant of conversation '%s'", actor, conversationID), nil)
	}

	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if subjectID == "" {
		// Conversations started from a listing carry the listing along.
		subjectID = conversation.SubjectID
	}

	now := time.Now()
	deal := &model.Deal{
		DealID:               model.GenerateUUIDWithSuffix("dl"),
		ConversationID:       conversationID,
		SubjectID:            subjectID,
		InitiatedBy:          actor,
		InitiatorConfirmed:   true,
		InitiatorConfirmedAt: &now,
		Status:               StatusPending,
		AutoResolveAt:        now.AddDate(0, 0, cnf.Deal.AutoResolvePeriodDays),
		CreatedAt:            now,
	}

	deal, err = d.datasource.CreatePending(ctx, deal)
	if err != nil {
		return nil, logAndRecordError(span, "create pending deal error: ", err)
	}

	d.notifyAsync(ctx, DealCounterparty(conversation, deal), EventDealInitiated, deal)

	return deal, nil
}

// ConfirmDeal records the actor's acknowledgment. When the other side has
// already confirmed, the deal transitions to CONFIRMED in the same guarded
// update. Confirming a deal the sweep already resolved is success, not an
// error: the caller's intent was satisfied either way.
func (d *Dealseal) ConfirmDeal(ctx context.Context, dealID, actor string) (*model.Deal, error) {
	ctx, span := tracer.Start(ctx, "Confirming deal")
	defer span.End()

	deal, conversation, role, err := d.resolveDeal(ctx, dealID, actor)
	if err != nil {
		return nil, err
	}

	if deal.Status != StatusPending {
		if deal.Status == StatusConfirmed {
			return deal, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Deal is %s and can no longer be confirmed", strings.ToLower(deal.Status)), nil)
	}

	if sideConfirmed(deal, role) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, "You have already confirmed this deal", nil)
	}

	now := time.Now()
	confirmed := true
	mutation := model.DealMutation{}
	completes := false
	switch role {
	case model.RoleInitiator:
		mutation.InitiatorConfirmed = &confirmed
		mutation.InitiatorConfirmedAt = &now
		completes = deal.CounterpartyConfirmed
	case model.RoleCounterparty:
		mutation.CounterpartyConfirmed = &confirmed
		mutation.CounterpartyConfirmedAt = &now
		completes = deal.InitiatorConfirmed
	}
	if completes {
		status := StatusConfirmed
		mutation.Status = &status
	}

	updated, err := d.datasource.CompareAndTransition(ctx, dealID, StatusPending, mutation)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) {
			// Lost the race, most likely to the sweep. If the deal ended up
			// confirmed the intent is satisfied; anything else is terminal.
			latest, readErr := d.datasource.GetDeal(ctx, dealID)
			if readErr != nil {
				return nil, readErr
			}
			if latest.Status == StatusConfirmed {
				return latest, nil
			}
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Deal is %s and can no longer be confirmed", strings.ToLower(latest.Status)), nil)
		}
		return nil, logAndRecordError(span, "confirm deal error: ", err)
	}

	other := otherParty(conversation, deal, actor)
	d.notifyAsync(ctx, other, EventDealConfirmed, updated)
	if completes {
		// Both sides acknowledged: this is where downstream review
		// eligibility unlocks.
		d.notifyAsync(ctx, deal.InitiatedBy, EventDealCompleted, updated)
		d.notifyAsync(ctx, DealCounterparty(conversation, deal), EventDealCompleted, updated)
	}

	return updated, nil
}

// DenyDeal lets the counterparty signal that the deal did not happen. It is
// advisory: the status stays PENDING and the deal still auto-resolves at its
// waiting-period deadline unless separately disputed or cancelled.
func (d *Dealseal) DenyDeal(ctx context.Context, dealID, actor string) (*model.Deal, error) {
	ctx, span := tracer.Start(ctx, "Denying deal")
	defer span.End()

	deal, _, role, err := d.resolveDeal(ctx, dealID, actor)
	if err != nil {
		return nil, err
	}

	if role == model.RoleInitiator {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Only the counterparty can deny a deal", nil)
	}

	if deal.Status != StatusPending {
		return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Deal is %s and can no longer be denied", strings.ToLower(deal.Status)), nil)
	}

	d.notifyAsync(ctx, deal.InitiatedBy, EventDealDenied, deal)

	return deal, nil
}

// DisputeDeal escalates the deal to DISPUTED, a terminal state the sweep
// never touches, and opens a support ticket referencing the deal. The
// ticket call is best-effort: its failure never rolls back the transition.
func (d *Dealseal) DisputeDeal(ctx context.Context, dealID, actor, reason, description string) (*model.Deal, error) {
	ctx, span := tracer.Start(ctx, "Disputing deal")
	defer span.End()

	if strings.TrimSpace(reason) == "" || strings.TrimSpace(description) == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Dispute requires a reason and a description", nil)
	}

	deal, conversation, _, err := d.resolveDeal(ctx, dealID, actor)
	if err != nil {
		return nil, err
	}

	status := StatusDisputed
	updated, err := d.datasource.CompareAndTransition(ctx, dealID, StatusPending, model.DealMutation{Status: &status})
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Deal is %s and can no longer be disputed", strings.ToLower(conflictStatus(err, deal.Status))), nil)
		}
		return nil, logAndRecordError(span, "dispute deal error: ", err)
	}

	go func() {
		subject := fmt.Sprintf("Deal dispute: %s", reason)
		ticketID, err := d.dispatcher.OpenDisputeTicket(context.Background(), actor, subject, description, dealID)
		if err != nil {
			notification.NotifyError(err)
			return
		}
		logrus.Infof("Opened dispute ticket %s for deal %s", ticketID, dealID)
	}()

	d.notifyAsync(ctx, otherParty(conversation, deal, actor), EventDealDisputed, updated)

	return updated, nil
}

// CancelDeal withdraws a pending deal. Only the original initiator may
// cancel, and only while the deal is still pending.
func (d *Dealseal) CancelDeal(ctx context.Context, dealID, actor string) (*model.Deal, error) {
	ctx, span := tracer.Start(ctx, "Cancelling deal")
	defer span.End()

	deal, conversation, role, err := d.resolveDeal(ctx, dealID, actor)
	if err != nil {
		return nil, err
	}

	if role != model.RoleInitiator {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "Only the initiator can cancel a deal", nil)
	}

	status := StatusCancelled
	updated, err := d.datasource.CompareAndTransition(ctx, dealID, StatusPending, model.DealMutation{Status: &status})
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) {
			return nil, apierror.NewAPIError(apierror.ErrInvalidState, fmt.Sprintf("Deal is %s and can no longer be cancelled", strings.ToLower(conflictStatus(err, deal.Status))), nil)
		}
		return nil, logAndRecordError(span, "cancel deal error: ", err)
	}

	d.notifyAsync(ctx, DealCounterparty(conversation, deal), EventDealCancelled, updated)

	return updated, nil
}

func (d *Dealseal) GetDeal(ctx context.Context, dealID string) (*model.Deal, error) {
	return d.datasource.GetDeal(ctx, dealID)
}

// GetDealsForUser lists deals in conversations the user participates in,
// optionally filtered by status.
func (d *Dealseal) GetDealsForUser(ctx context.Context, userID, status string, limit, offset int) ([]model.Deal, error) {
	if status != "" && !validStatus(status) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("Unknown status filter '%s'", status), nil)
	}
	return d.datasource.GetDealsForUser(ctx, userID, status, limit, offset)
}

// RegisterConversation records the participant projection the role resolver
// reads. Conversations themselves live in the chat service; this is only
// the pair of fixed participants plus listing ownership.
func (d *Dealseal) RegisterConversation(ctx context.Context, conversation *model.Conversation) (*model.Conversation, error) {
	if conversation.ConversationID == "" {
		conversation.ConversationID = model.GenerateUUIDWithSuffix("conv")
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now()
	}
	return d.datasource.CreateConversation(ctx, conversation)
}

// resolveDeal loads the deal and its conversation and resolves the actor's
// role. Unauthorized actors are rejected before any store mutation.
func (d *Dealseal) resolveDeal(ctx context.Context, dealID, actor string) (*model.Deal, *model.Conversation, model.Role, error) {
	deal, err := d.datasource.GetDeal(ctx, dealID)
	if err != nil {
		return nil, nil, model.RoleNone, err
	}

	conversation, err := d.datasource.GetConversation(ctx, deal.ConversationID)
	if err != nil {
		return nil, nil, model.RoleNone, err
	}

	role := ResolveRole(conversation, deal, actor)
	if role == model.RoleNone {
		return nil, nil, role, apierror.NewAPIError(apierror.ErrForbidden, fmt.Sprintf("User '%s' is not a participant of this deal", actor), nil)
	}

	return deal, conversation, role, nil
}

func sideConfirmed(deal *model.Deal, role model.Role) bool {
	if role == model.RoleInitiator {
		return deal.InitiatorConfirmed
	}
	return deal.CounterpartyConfirmed
}

// conflictStatus pulls the current status a guarded transition reported when
// it found the deal already moved on. The pre-read status is stale by then,
// so it is only a fallback.
func conflictStatus(err error, fallback string) string {
	if apiErr, ok := err.(apierror.APIError); ok {
		if status, ok := apiErr.Details.(string); ok && status != "" {
			return status
		}
	}
	return fallback
}

func otherParty(conversation *model.Conversation, deal *model.Deal, actor string) string {
	if actor == deal.InitiatedBy {
		return DealCounterparty(conversation, deal)
	}
	return deal.InitiatedBy
}

// notifyAsync dispatches a notification without blocking the caller.
// Failures are reported to the error notifier and swallowed: a notification
// must never undo a committed transition.
func (d *Dealseal) notifyAsync(_ context.Context, userID, event string, deal *model.Deal) {
	if userID == "" {
		return
	}
	go func() {
		if err := d.dispatcher.Notify(context.Background(), userID, event, deal); err != nil {
			notification.NotifyError(err)
		}
	}()
}

func validStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusDisputed, StatusCancelled:
		return true
	}
	return false
}
