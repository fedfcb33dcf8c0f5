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
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dealseal/dealseal/config"
	"github.com/dealseal/dealseal/internal/apierror"
	"github.com/dealseal/dealseal/internal/notification"
	"github.com/dealseal/dealseal/model"
)

// SweepDueDeals auto-resolves every pending deal whose waiting period has
// elapsed as of now. Each deal is resolved with its own guarded transition,
// so a deal that was confirmed, disputed or cancelled between the scan and
// the update is skipped without touching the rest of the batch. Returns the
// number of deals resolved.
func (d *Dealseal) SweepDueDeals(ctx context.Context, now time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Sweeping due deals")
	defer span.End()

	cnf, err := config.Fetch()
	if err != nil {
		return 0, err
	}

	batchSize := cnf.Deal.SweepBatchSize
	resolved := 0
	for {
		due, err := d.datasource.FindDueForAutoResolve(ctx, now, batchSize)
		if err != nil {
			return resolved, logAndRecordError(span, "sweep scan error: ", err)
		}
		if len(due) == 0 {
			return resolved, nil
		}

		progressed := 0
		for _, overdue := range due {
			ok, err := d.autoResolve(ctx, overdue, now)
			if err != nil {
				logrus.Errorf("auto-resolve failed for deal %s: %v", overdue.DealID, err)
				continue
			}
			if ok {
				resolved++
				progressed++
			}
		}

		if len(due) < batchSize {
			return resolved, nil
		}
		if progressed == 0 {
			// Nothing in a full batch could be resolved. Bail instead of
			// rescanning the same rows forever.
			return resolved, fmt.Errorf("sweep made no progress on a full batch of %d deals", len(due))
		}
	}
}

// autoResolve transitions a single overdue deal to CONFIRMED with both
// confirmation flags forced true, so a confirmed deal always reads as fully
// acknowledged no matter which path confirmed it. A timestamp a party set by
// explicitly confirming is kept; only unset ones are stamped with the sweep
// time. A conflict means another actor moved the deal first, which is a
// skip, not an error.
func (d *Dealseal) autoResolve(ctx context.Context, deal *model.Deal, now time.Time) (bool, error) {
	status := StatusConfirmed
	confirmed := true
	mutation := model.DealMutation{
		Status:                &status,
		InitiatorConfirmed:    &confirmed,
		CounterpartyConfirmed: &confirmed,
	}
	if deal.InitiatorConfirmedAt == nil {
		mutation.InitiatorConfirmedAt = &now
	}
	if deal.CounterpartyConfirmedAt == nil {
		mutation.CounterpartyConfirmedAt = &now
	}

	updated, err := d.datasource.CompareAndTransition(ctx, deal.DealID, StatusPending, mutation)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrConflict) || apierror.IsCode(err, apierror.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	logrus.Infof("Auto-resolved deal %s after waiting period expired", deal.DealID)

	conversation, err := d.datasource.GetConversation(ctx, deal.ConversationID)
	if err != nil {
		// The transition is committed; a missing projection only costs the
		// notifications.
		notification.NotifyError(err)
		return true, nil
	}

	d.notifyAsync(ctx, deal.InitiatedBy, EventDealAutoConfirmed, updated)
	d.notifyAsync(ctx, DealCounterparty(conversation, deal), EventDealAutoConfirmed, updated)

	return true, nil
}

// Sweeper periodically runs the auto-resolve sweep on a cron schedule.
type Sweeper struct {
	engine *Dealseal
	cron   *cron.Cron
}

func NewSweeper(engine *Dealseal) *Sweeper {
	return &Sweeper{
		engine: engine,
		cron:   cron.New(),
	}
}

// Start runs one sweep immediately, then schedules recurring sweeps at the
// configured interval. Deals that came due while no process was running are
// resolved by the boot-time pass.
func (s *Sweeper) Start(ctx context.Context) error {
	cnf, err := config.Fetch()
	if err != nil {
		return err
	}

	sweep := func() {
		resolved, err := s.engine.SweepDueDeals(ctx, time.Now())
		if err != nil {
			logrus.Errorf("sweep pass failed: %v", err)
			notification.NotifyError(err)
			return
		}
		if resolved > 0 {
			logrus.Infof("Sweep pass auto-resolved %d deals", resolved)
		}
	}

	sweep()

	spec := fmt.Sprintf("@every %s", cnf.Deal.SweepInterval)
	if _, err := s.cron.AddFunc(spec, sweep); err != nil {
		return err
	}
	s.cron.Start()
	logrus.Infof("Sweeper started with interval %s", cnf.Deal.SweepInterval)
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
