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
	"embed"

	"github.com/dealseal/dealseal/config"
	"github.com/dealseal/dealseal/database"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

// Dealseal is the deal confirmation engine: the state machine that lets
// either party in a conversation acknowledge a completed deal, plus the
// sweeper and side-effect plumbing around it.
type Dealseal struct {
	queue      *Queue
	datasource database.IDataSource
	dispatcher Dispatcher
}

// NewDealseal initializes the engine with the provided datasource. It
// fetches the configuration and wires the webhook queue and the default
// side-effect dispatcher.
func NewDealseal(db database.IDataSource) (*Dealseal, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	return &Dealseal{
		queue:      newQueue,
		datasource: db,
		dispatcher: &webhookDispatcher{queue: newQueue},
	}, nil
}
