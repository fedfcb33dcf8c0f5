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
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/model"
)

// conversationCacheTTL is long because the participant pair of a
// conversation never changes once recorded.
const conversationCacheTTL = 10 * time.Minute

func (d Datasource) CreateConversation(ctx context.Context, conversation *model.Conversation) (*model.Conversation, error) {
	subject := sql.NullString{String: conversation.SubjectID, Valid: conversation.SubjectID != ""}
	owner := sql.NullString{String: conversation.SubjectOwner, Valid: conversation.SubjectOwner != ""}

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO conversations(conversation_id,participant_a,participant_b,subject_id,subject_owner,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		conversation.ConversationID, conversation.ParticipantA, conversation.ParticipantB, subject, owner, conversation.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrDuplicateActive, fmt.Sprintf("Conversation '%s' already registered", conversation.ConversationID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record conversation", err)
	}

	return conversation, nil
}

// GetConversation reads the participant projection, serving repeat lookups
// from cache.
func (d Datasource) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	cacheKey := fmt.Sprintf("conversation:%s", conversationID)

	if d.Cache != nil {
		conversation := &model.Conversation{}
		if err := d.Cache.Get(ctx, cacheKey, conversation); err == nil && conversation.ConversationID != "" {
			return conversation, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT conversation_id, participant_a, participant_b, subject_id, subject_owner, created_at
		FROM conversations
		WHERE conversation_id = $1
	`, conversationID)

	conversation := &model.Conversation{}
	var subject, owner sql.NullString
	err := row.Scan(&conversation.ConversationID, &conversation.ParticipantA, &conversation.ParticipantB, &subject, &owner, &conversation.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Conversation with ID '%s' not found", conversationID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve conversation", err)
	}
	conversation.SubjectID = subject.String
	conversation.SubjectOwner = owner.String

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, cacheKey, conversation, conversationCacheTTL); err != nil {
			// Participants still come from the base table next time.
			log.Printf("Failed to cache conversation: %v", err)
		}
	}

	return conversation, nil
}
