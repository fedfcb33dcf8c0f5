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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/lib/pq"

	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/model"
)

const dealColumns = `deal_id, conversation_id, subject_id, initiated_by, initiator_confirmed, counterparty_confirmed, initiator_confirmed_at, counterparty_confirmed_at, status, auto_resolve_at, created_at`

// CreatePending inserts a new pending deal. The partial unique indexes on
// deals reject a second pending deal for the conversation and a second
// active deal for the subject; both surface as DUPLICATE_ACTIVE.
func (d Datasource) CreatePending(ctx context.Context, deal *model.Deal) (*model.Deal, error) {
	ctx, span := otel.Tracer("deal.database").Start(ctx, "Saving pending deal to db")
	defer span.End()

	subject := sql.NullString{String: deal.SubjectID, Valid: deal.SubjectID != ""}

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO deals(deal_id,conversation_id,subject_id,initiated_by,initiator_confirmed,counterparty_confirmed,initiator_confirmed_at,counterparty_confirmed_at,status,auto_resolve_at,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		deal.DealID, deal.ConversationID, subject, deal.InitiatedBy, deal.InitiatorConfirmed, deal.CounterpartyConfirmed, deal.InitiatorConfirmedAt, deal.CounterpartyConfirmedAt, deal.Status, deal.AutoResolveAt, deal.CreatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Error(), "idx_deals_active_subject") {
				return nil, apierror.NewAPIError(apierror.ErrDuplicateActive, fmt.Sprintf("Subject '%s' already has an active deal", deal.SubjectID), err)
			}
			return nil, apierror.NewAPIError(apierror.ErrDuplicateActive, fmt.Sprintf("Conversation '%s' already has a pending deal", deal.ConversationID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record deal", err)
	}

	return deal, nil
}

// CompareAndTransition applies mutation to a deal only while its status
// matches expectedStatus. The check and the write are a single UPDATE, so
// concurrent writers cannot both win; the loser gets a CONFLICT carrying
// the status the row had moved to.
func (d Datasource) CompareAndTransition(ctx context.Context, dealID, expectedStatus string, mutation model.DealMutation) (*model.Deal, error) {
	ctx, span := otel.Tracer("deal.database").Start(ctx, "Guarded deal transition")
	defer span.End()

	setClauses, args := buildMutation(mutation)
	if len(setClauses) == 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "Transition mutation is empty", nil)
	}

	args = append([]interface{}{dealID, expectedStatus}, args...)
	query := fmt.Sprintf(`
		UPDATE deals
		SET %s
		WHERE deal_id = $1 AND status = $2
		RETURNING %s
	`, strings.Join(setClauses, ", "), dealColumns)

	row := d.Conn.QueryRowContext(ctx, query, args...)
	deal, err := scanDeal(row)
	if err == nil {
		return deal, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to transition deal", err)
	}

	// No row matched: the deal is gone or its status moved on. Report
	// which, so the caller can react idempotently.
	var currentStatus string
	err = d.Conn.QueryRowContext(ctx, `SELECT status FROM deals WHERE deal_id = $1`, dealID).Scan(&currentStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Deal with ID '%s' not found", dealID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read deal status", err)
	}
	return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Deal '%s' is %s, expected %s", dealID, currentStatus, expectedStatus), currentStatus)
}

// buildMutation turns the set fields of a DealMutation into SET clauses.
// Placeholders start at $3; $1 and $2 are the deal id and expected status.
func buildMutation(mutation model.DealMutation) ([]string, []interface{}) {
	var setClauses []string
	var args []interface{}
	argIndex := 3

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if mutation.Status != nil {
		addClause("status", *mutation.Status)
	}
	if mutation.InitiatorConfirmed != nil {
		addClause("initiator_confirmed", *mutation.InitiatorConfirmed)
	}
	if mutation.CounterpartyConfirmed != nil {
		addClause("counterparty_confirmed", *mutation.CounterpartyConfirmed)
	}
	if mutation.InitiatorConfirmedAt != nil {
		addClause("initiator_confirmed_at", *mutation.InitiatorConfirmedAt)
	}
	if mutation.CounterpartyConfirmedAt != nil {
		addClause("counterparty_confirmed_at", *mutation.CounterpartyConfirmedAt)
	}

	return setClauses, args
}

// FindDueForAutoResolve returns pending deals whose waiting period elapsed
// at or before now, oldest first. Used exclusively by the sweeper.
func (d Datasource) FindDueForAutoResolve(ctx context.Context, now time.Time, limit int) ([]*model.Deal, error) {
	ctx, span := otel.Tracer("deal.database").Start(ctx, "Fetching deals due for auto-resolve")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM deals
		WHERE status = 'PENDING' AND auto_resolve_at <= $1
		ORDER BY auto_resolve_at ASC
		LIMIT $2
	`, dealColumns), now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve due deals", err)
	}
	defer rows.Close()

	var deals []*model.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan deal data", err)
		}
		deals = append(deals, deal)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over deals", err)
	}

	return deals, nil
}

func (d Datasource) GetDeal(ctx context.Context, dealID string) (*model.Deal, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM deals
		WHERE deal_id = $1
	`, dealColumns), dealID)

	deal, err := scanDeal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Deal with ID '%s' not found", dealID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve deal", err)
	}

	return deal, nil
}

// GetDealsForUser lists deals in conversations the user participates in,
// newest first. An empty status lists all of them.
func (d Datasource) GetDealsForUser(ctx context.Context, userID, status string, limit, offset int) ([]model.Deal, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM deals d
		JOIN conversations c ON c.conversation_id = d.conversation_id
		WHERE (c.participant_a = $1 OR c.participant_b = $1 OR c.subject_owner = $1)
	`, prefixedDealColumns("d"))
	args := []interface{}{userID}
	argIndex := 2

	if status != "" {
		query += fmt.Sprintf(" AND d.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY d.created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve deals", err)
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan deal data", err)
		}
		deals = append(deals, *deal)
	}

	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over deals", err)
	}

	return deals, nil
}

func prefixedDealColumns(alias string) string {
	cols := strings.Split(dealColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeal(row rowScanner) (*model.Deal, error) {
	deal := &model.Deal{}
	var subject sql.NullString
	var initiatorConfirmedAt, counterpartyConfirmedAt sql.NullTime

	err := row.Scan(
		&deal.DealID,
		&deal.ConversationID,
		&subject,
		&deal.InitiatedBy,
		&deal.InitiatorConfirmed,
		&deal.CounterpartyConfirmed,
		&initiatorConfirmedAt,
		&counterpartyConfirmedAt,
		&deal.Status,
		&deal.AutoResolveAt,
		&deal.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	deal.SubjectID = subject.String
	if initiatorConfirmedAt.Valid {
		t := initiatorConfirmedAt.Time
		deal.InitiatorConfirmedAt = &t
	}
	if counterpartyConfirmedAt.Valid {
		t := counterpartyConfirmedAt.Time
		deal.CounterpartyConfirmedAt = &t
	}

	return deal, nil
}
