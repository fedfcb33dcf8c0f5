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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/model"
)

var dealRowColumns = []string{
	"deal_id", "conversation_id", "subject_id", "initiated_by",
	"initiator_confirmed", "counterparty_confirmed",
	"initiator_confirmed_at", "counterparty_confirmed_at",
	"status", "auto_resolve_at", "created_at",
}

func pendingDeal() *model.Deal {
	now := time.Now()
	return &model.Deal{
		DealID:               "dl_123",
		ConversationID:       "conv_1",
		SubjectID:            "lst_1",
		InitiatedBy:          "user_a",
		InitiatorConfirmed:   true,
		InitiatorConfirmedAt: &now,
		Status:               "PENDING",
		AutoResolveAt:        now.AddDate(0, 0, 7),
		CreatedAt:            now,
	}
}

func TestCreatePendingDeal_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	deal := pendingDeal()

	mock.ExpectExec("INSERT INTO deals").
		WithArgs(deal.DealID, deal.ConversationID, deal.SubjectID, deal.InitiatedBy, deal.InitiatorConfirmed, deal.CounterpartyConfirmed, *deal.InitiatorConfirmedAt, nil, deal.Status, deal.AutoResolveAt, deal.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := ds.CreatePending(context.Background(), deal)
	assert.NoError(t, err)
	assert.Equal(t, deal, result)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreatePendingDeal_PendingConversationTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	deal := pendingDeal()

	mock.ExpectExec("INSERT INTO deals").
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "idx_deals_pending_conversation"`})

	_, err = ds.CreatePending(context.Background(), deal)
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrDuplicateActive))
	assert.Contains(t, err.Error(), "already has a pending deal")
}

func TestCreatePendingDeal_SubjectTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	deal := pendingDeal()

	mock.ExpectExec("INSERT INTO deals").
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "idx_deals_active_subject"`})

	_, err = ds.CreatePending(context.Background(), deal)
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrDuplicateActive))
	assert.Contains(t, err.Error(), "already has an active deal")
}

func TestCompareAndTransition_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	now := time.Now()
	status := "CANCELLED"

	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_123", "PENDING", status).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_123", "conv_1", "lst_1", "user_a", true, false, now, nil, status, now.AddDate(0, 0, 7), now))

	deal, err := ds.CompareAndTransition(context.Background(), "dl_123", "PENDING", model.DealMutation{Status: &status})
	assert.NoError(t, err)
	assert.Equal(t, "CANCELLED", deal.Status)
	assert.True(t, deal.InitiatorConfirmed)
	assert.NotNil(t, deal.InitiatorConfirmedAt)
	assert.Nil(t, deal.CounterpartyConfirmedAt)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCompareAndTransition_StatusMoved(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	status := "CONFIRMED"

	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_123", "PENDING", status).
		WillReturnRows(sqlmock.NewRows(dealRowColumns))

	mock.ExpectQuery("SELECT status FROM deals").
		WithArgs("dl_123").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CANCELLED"))

	_, err = ds.CompareAndTransition(context.Background(), "dl_123", "PENDING", model.DealMutation{Status: &status})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrConflict))
	assert.Contains(t, err.Error(), "CANCELLED")
}

func TestCompareAndTransition_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	status := "CONFIRMED"

	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_missing", "PENDING", status).
		WillReturnRows(sqlmock.NewRows(dealRowColumns))

	mock.ExpectQuery("SELECT status FROM deals").
		WithArgs("dl_missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	_, err = ds.CompareAndTransition(context.Background(), "dl_missing", "PENDING", model.DealMutation{Status: &status})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
}

func TestCompareAndTransition_EmptyMutation(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	_, err = ds.CompareAndTransition(context.Background(), "dl_123", "PENDING", model.DealMutation{})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrInvalidInput))
}

func TestFindDueForAutoResolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM deals").
		WithArgs(now, 100).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_1", "conv_1", "lst_1", "user_a", true, false, now, nil, "PENDING", now.Add(-time.Hour), now.AddDate(0, 0, -7)).
			AddRow("dl_2", "conv_2", nil, "user_c", true, false, now, nil, "PENDING", now.Add(-time.Minute), now.AddDate(0, 0, -7)))

	deals, err := ds.FindDueForAutoResolve(context.Background(), now, 100)
	assert.NoError(t, err)
	assert.Len(t, deals, 2)
	assert.Equal(t, "dl_1", deals[0].DealID)
	assert.Empty(t, deals[1].SubjectID)
}

func TestGetDeal_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT (.+) FROM deals").
		WithArgs("dl_missing").
		WillReturnRows(sqlmock.NewRows(dealRowColumns))

	_, err = ds.GetDeal(context.Background(), "dl_missing")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
}

func TestGetDealsForUser_StatusFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM deals d").
		WithArgs("user_a", "PENDING", 50, 0).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_1", "conv_1", "lst_1", "user_a", true, false, now, nil, "PENDING", now.AddDate(0, 0, 7), now))

	deals, err := ds.GetDealsForUser(context.Background(), "user_a", "PENDING", 50, 0)
	assert.NoError(t, err)
	assert.Len(t, deals, 1)
	assert.Equal(t, "dl_1", deals[0].DealID)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetDealsForUser_NoFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM deals d").
		WithArgs("user_a", 10, 5).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_1", "conv_1", "lst_1", "user_a", true, true, now, now, "CONFIRMED", now, now).
			AddRow("dl_2", "conv_2", nil, "user_b", true, false, now, nil, "CANCELLED", now, now))

	deals, err := ds.GetDealsForUser(context.Background(), "user_a", "", 10, 5)
	assert.NoError(t, err)
	assert.Len(t, deals, 2)
	assert.Equal(t, "CONFIRMED", deals[0].Status)
	assert.NotNil(t, deals[0].CounterpartyConfirmedAt)
}
