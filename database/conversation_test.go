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
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/model"
)

type mockCache struct {
	data map[string]interface{}
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]interface{})}
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCache) Get(ctx context.Context, key string, data interface{}) error {
	if v, ok := m.data[key]; ok {
		switch d := data.(type) {
		case *model.Conversation:
			*d = *(v.(*model.Conversation))
		}
		return nil
	}
	return errors.New("cache miss")
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestCreateConversation_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}
	conversation := &model.Conversation{
		ConversationID: "conv_1",
		ParticipantA:   "user_a",
		ParticipantB:   "user_b",
		SubjectID:      "lst_1",
		SubjectOwner:   "user_b",
		CreatedAt:      time.Now(),
	}

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(conversation.ConversationID, conversation.ParticipantA, conversation.ParticipantB, conversation.SubjectID, conversation.SubjectOwner, conversation.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	result, err := ds.CreateConversation(context.Background(), conversation)
	assert.NoError(t, err)
	assert.Equal(t, conversation, result)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateConversation_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO conversations").
		WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "conversations_conversation_id_key"`})

	_, err = ds.CreateConversation(context.Background(), &model.Conversation{
		ConversationID: "conv_1",
		ParticipantA:   "user_a",
		ParticipantB:   "user_b",
		CreatedAt:      time.Now(),
	})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrDuplicateActive))
}

func TestGetConversation_CachesProjection(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db, Cache: newMockCache()}
	now := time.Now()

	mock.ExpectQuery("SELECT conversation_id, participant_a").
		WithArgs("conv_1").
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id", "participant_a", "participant_b", "subject_id", "subject_owner", "created_at"}).
			AddRow("conv_1", "user_a", "user_b", "lst_1", "user_b", now))

	first, err := ds.GetConversation(context.Background(), "conv_1")
	assert.NoError(t, err)
	assert.Equal(t, "user_a", first.ParticipantA)
	assert.Equal(t, "lst_1", first.SubjectID)

	// Second lookup is served from cache; no further query is expected.
	second, err := ds.GetConversation(context.Background(), "conv_1")
	assert.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Equal(t, first.ParticipantB, second.ParticipantB)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT conversation_id, participant_a").
		WithArgs("conv_missing").
		WillReturnRows(sqlmock.NewRows([]string{"conversation_id", "participant_a", "participant_b", "subject_id", "subject_owner", "created_at"}))

	_, err = ds.GetConversation(context.Background(), "conv_missing")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
}
