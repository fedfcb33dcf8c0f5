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
	"time"

	"github.com/dealseal/dealseal/model"
)

// IDataSource defines the interface for data source operations, grouping
// related functionalities.
type IDataSource interface {
	deal
	conversation
}

// deal defines methods for handling deal records. Every mutation goes
// through CreatePending or CompareAndTransition; there is no unguarded
// write path.
type deal interface {
	CreatePending(ctx context.Context, deal *model.Deal) (*model.Deal, error)
	CompareAndTransition(ctx context.Context, dealID, expectedStatus string, mutation model.DealMutation) (*model.Deal, error)
	FindDueForAutoResolve(ctx context.Context, now time.Time, limit int) ([]*model.Deal, error)
	GetDeal(ctx context.Context, dealID string) (*model.Deal, error)
	GetDealsForUser(ctx context.Context, userID, status string, limit, offset int) ([]model.Deal, error)
}

// conversation defines methods for the conversation projection used by
// role resolution.
type conversation interface {
	CreateConversation(ctx context.Context, conversation *model.Conversation) (*model.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error)
}
