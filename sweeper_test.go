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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/dealseal/dealseal/model"
)

func dueDealRow(rows *sqlmock.Rows, dealID, conversationID string, now time.Time) *sqlmock.Rows {
	return rows.AddRow(dealID, conversationID, nil, "user_a", true, false, now.AddDate(0, 0, -7), nil, StatusPending, now.Add(-time.Hour), now.AddDate(0, 0, -7))
}

func TestSweepDueDeals(t *testing.T) {
	engine, mock, recorder := newTestEngine(t)
	now := time.Now()

	rows := sqlmock.NewRows(dealRowColumns)
	dueDealRow(rows, "dl_1", "conv_1", now)

	mock.ExpectQuery("SELECT (.+) FROM deals").
		WithArgs(now, 500).
		WillReturnRows(rows)

	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_1", StatusPending, StatusConfirmed, true, true, now).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_1", "conv_1", nil, "user_a", true, true, now.AddDate(0, 0, -7), now, StatusConfirmed, now.Add(-time.Hour), now.AddDate(0, 0, -7)))

	expectConversation(mock, "conv_1", "user_a", "user_b", "", "")

	resolved, err := engine.SweepDueDeals(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 1, resolved)

	assert.Eventually(t, func() bool {
		return recorder.notified("user_a:"+EventDealAutoConfirmed) && recorder.notified("user_b:"+EventDealAutoConfirmed)
	}, time.Second, 10*time.Millisecond)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSweepDueDeals_NothingDue(t *testing.T) {
	engine, mock, _ := newTestEngine(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM deals").
		WithArgs(now, 500).
		WillReturnRows(sqlmock.NewRows(dealRowColumns))

	resolved, err := engine.SweepDueDeals(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 0, resolved)
}

// A confirmed deal must read as fully acknowledged no matter which path
// confirmed it. The sweep forces both flags true and stamps the missing
// counterparty timestamp while keeping the initiator's explicit one.
func TestSweepDueDeals_SweptDealIsFullyConfirmed(t *testing.T) {
	engine, mock, recorder := newTestEngine(t)
	now := time.Now()
	openedAt := now.AddDate(0, 0, -7)

	rows := sqlmock.NewRows(dealRowColumns)
	dueDealRow(rows, "dl_1", "conv_1", now)

	mock.ExpectQuery("SELECT (.+) FROM deals").
		WithArgs(now, 500).
		WillReturnRows(rows)

	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_1", StatusPending, StatusConfirmed, true, true, now).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_1", "conv_1", nil, "user_a", true, true, openedAt, now, StatusConfirmed, now.Add(-time.Hour), openedAt))

	expectConversation(mock, "conv_1", "user_a", "user_b", "", "")

	resolved, err := engine.SweepDueDeals(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 1, resolved)

	entry := "user_b:" + EventDealAutoConfirmed
	assert.Eventually(t, func() bool {
		return recorder.notified(entry)
	}, time.Second, 10*time.Millisecond)

	swept, ok := recorder.payload(entry).(*model.Deal)
	if !ok {
		t.Fatalf("expected a deal payload, got %T", recorder.payload(entry))
	}
	assert.True(t, swept.FullyConfirmed())
	assert.NotNil(t, swept.CounterpartyConfirmedAt)
	assert.True(t, swept.CounterpartyConfirmedAt.Equal(now))
	assert.True(t, swept.InitiatorConfirmedAt.Equal(openedAt))
}

// A deal that was confirmed, disputed or cancelled between the scan and the
// guarded update is skipped; the rest of the batch still resolves.
func TestSweepDueDeals_ConflictIsIsolated(t *testing.T) {
	engine, mock, _ := newTestEngine(t)
	now := time.Now()

	rows := sqlmock.NewRows(dealRowColumns)
	dueDealRow(rows, "dl_1", "conv_1", now)
	dueDealRow(rows, "dl_2", "conv_2", now)

	mock.ExpectQuery("SELECT (.+) FROM deals").
		WithArgs(now, 500).
		WillReturnRows(rows)

	// dl_1 was disputed after the scan.
	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_1", StatusPending, StatusConfirmed, true, true, now).
		WillReturnRows(sqlmock.NewRows(dealRowColumns))
	mock.ExpectQuery("SELECT status FROM deals").
		WithArgs("dl_1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(StatusDisputed))

	// dl_2 resolves normally.
	mock.ExpectQuery("UPDATE deals").
		WithArgs("dl_2", StatusPending, StatusConfirmed, true, true, now).
		WillReturnRows(sqlmock.NewRows(dealRowColumns).
			AddRow("dl_2", "conv_2", nil, "user_a", true, true, now.AddDate(0, 0, -7), now, StatusConfirmed, now.Add(-time.Hour), now.AddDate(0, 0, -7)))
	expectConversation(mock, "conv_2", "user_a", "user_b", "", "")

	resolved, err := engine.SweepDueDeals(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, 1, resolved)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
