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
	"net/http"
	"time"

	"github.com/dealseal/dealseal/config"
	"github.com/dealseal/dealseal/internal/request"
)

// Dispatcher abstracts the side effects the engine triggers after a state
// transition commits. Implementations must tolerate being called for
// transitions that already happened; the engine never rolls back on a
// dispatch failure.
type Dispatcher interface {
	Notify(ctx context.Context, userID, event string, payload interface{}) error
	OpenDisputeTicket(ctx context.Context, userID, subject, description, dealID string) (string, error)
}

// webhookDispatcher delivers notifications through the asynq-backed webhook
// queue and opens dispute tickets against the configured support endpoint.
type webhookDispatcher struct {
	queue *Queue
}

func (w *webhookDispatcher) Notify(ctx context.Context, userID, event string, payload interface{}) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}
	if cnf.Notification.Webhook.Url == "" {
		return nil
	}
	return w.queue.EnqueueWebhook(ctx, NewWebhook{
		Event:   event,
		UserID:  userID,
		Payload: payload,
	})
}

type disputeTicketPayload struct {
	UserID      string `json:"user_id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	DealID      string `json:"deal_id"`
}

type disputeTicketResponse struct {
	TicketID string `json:"ticket_id"`
}

// OpenDisputeTicket files a ticket with the support system and returns its
// ID. A missing support URL is a configuration gap, not a silent no-op, so
// disputes are never dropped unnoticed.
func (w *webhookDispatcher) OpenDisputeTicket(ctx context.Context, userID, subject, description, dealID string) (string, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return "", err
	}
	if cnf.Support.TicketUrl == "" {
		return "", fmt.Errorf("support ticket url is not configured")
	}

	payload := disputeTicketPayload{
		UserID:      userID,
		Subject:     subject,
		Description: description,
		DealID:      dealID,
	}

	if cnf.Support.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cnf.Support.Timeout)*time.Second)
		defer cancel()
	}

	body, err := request.ToJsonReq(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cnf.Support.TicketUrl, body)
	if err != nil {
		return "", err
	}
	if cnf.Support.Headers.Authorization != "" {
		req.Header.Set("Authorization", cnf.Support.Headers.Authorization)
	}

	var response disputeTicketResponse
	resp, err := request.Call(req, &response)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("support ticket request failed with status code: %d", resp.StatusCode)
	}

	return response.TicketID, nil
}
