// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package reconcile pulls pending signing and delivery responses from the
// provider, merges them into the matching letters and retires each response
// once the letter has been saved.
//
// Failures are isolated at the narrowest scope: one response fetch, one
// letter save, one tenant listing. Nothing escapes Reconcile.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/drl/statussync/internal/mapper"
	"github.com/drl/statussync/internal/metrics"
	"github.com/drl/statussync/internal/models"
)

// TenantSelector returns the tenants that need a pass. Implemented by
// tenant.Selector.
type TenantSelector interface {
	CandidateTenants(ctx context.Context) ([]models.Tenant, error)
}

// LetterStore is the subset of letters.Store the worker uses.
type LetterStore interface {
	FindByID(ctx context.Context, id string) (*models.Letter, error)
	Save(ctx context.Context, letter *models.Letter) error
}

// NotificationProvider is the provider API. Implemented by provider.Client.
type NotificationProvider interface {
	ListPending(ctx context.Context, tenant models.Tenant) ([]models.PendingEventReference, error)
	FetchDetail(ctx context.Context, responseKey string, tenant models.Tenant) (*models.ProviderEvent, error)
	Delete(ctx context.Context, responseKey string, tenant models.Tenant) error
}

// StatusPublisher announces letter status changes. Implemented by
// events.Publisher.
type StatusPublisher interface {
	PublishStatusChange(ctx context.Context, tenant models.Tenant, letter *models.Letter, previousStatus, previousSigningStatus string) error
}

// errEmptyResponse is used when the provider returns no event body.
var errEmptyResponse = errors.New("provider returned an empty response")

// Worker runs reconciliation passes.
type Worker struct {
	selector  TenantSelector
	store     LetterStore
	provider  NotificationProvider
	publisher StatusPublisher
}

// WorkerConfig holds the dependencies of a Worker. Publisher is optional.
type WorkerConfig struct {
	Selector  TenantSelector
	Store     LetterStore
	Provider  NotificationProvider
	Publisher StatusPublisher
}

// NewWorker creates a reconciliation worker.
func NewWorker(cfg WorkerConfig) *Worker {
	return &Worker{
		selector:  cfg.Selector,
		store:     cfg.Store,
		provider:  cfg.Provider,
		publisher: cfg.Publisher,
	}
}

// Reconcile performs one pass over all candidate tenants. Tenants and
// their responses are processed sequentially. It always returns normally;
// failures are logged and summarised in the result.
//
// Cancelling ctx stops the pass between items. Whatever was not reached is
// picked up by the next run.
func (w *Worker) Reconcile(ctx context.Context) *RunResult {
	start := time.Now()
	result := &RunResult{StartedAt: start.UTC()}

	defer func() {
		result.Elapsed = time.Since(start)
		metrics.ObserveRun(result.Elapsed, result.SelectError == "")
		slog.Info("reconciliation run complete",
			"tenants", len(result.Tenants),
			"applied", result.TotalApplied,
			"unmatched", result.TotalUnmatched,
			"failed", result.TotalFailed,
			"interrupted", result.Interrupted,
			"elapsed", result.Elapsed,
		)
	}()

	tenants, err := w.selectTenants(ctx)
	if err != nil {
		slog.Error("failed to select tenants", "error", err)
		result.SelectError = err.Error()
		return result
	}

	if len(tenants) == 0 {
		slog.Debug("no tenants with pending letters")
		return result
	}

	slog.Info("starting reconciliation run", "tenants", len(tenants))

	for _, t := range tenants {
		if ctx.Err() != nil {
			slog.Warn("reconciliation run interrupted",
				"next_tenant_id", t.ID,
				"error", ctx.Err(),
			)
			result.Interrupted = true
			break
		}

		tr := w.reconcileTenant(ctx, t)
		if tr.Interrupted {
			result.Interrupted = true
		}
		result.add(tr)
	}

	return result
}

// selectTenants asks the selector for candidates, converting a panic into
// an error.
func (w *Worker) selectTenants(ctx context.Context) (tenants []models.Tenant, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic selecting tenants: %v", r)
		}
	}()
	return w.selector.CandidateTenants(ctx)
}

// reconcileTenant processes every pending response of one tenant.
func (w *Worker) reconcileTenant(ctx context.Context, tenant models.Tenant) (tr TenantResult) {
	tr = TenantResult{
		TenantID:       tenant.ID,
		MunicipalityID: tenant.MunicipalityID,
		OrgNumber:      tenant.OrgNumber,
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while reconciling tenant",
				"tenant_id", tenant.ID,
				"municipality_id", tenant.MunicipalityID,
				"org_number", tenant.OrgNumber,
				"panic", r,
			)
			tr.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	refs, err := w.provider.ListPending(ctx, tenant)
	if err != nil {
		slog.Error("failed to list pending responses",
			"tenant_id", tenant.ID,
			"municipality_id", tenant.MunicipalityID,
			"org_number", tenant.OrgNumber,
			"error", err,
		)
		metrics.TenantListFailuresTotal.Inc()
		tr.ListFailed = true
		tr.Error = err.Error()
		return tr
	}
	tr.Listed = len(refs)

	if len(refs) == 0 {
		slog.Debug("no pending responses",
			"municipality_id", tenant.MunicipalityID,
			"org_number", tenant.OrgNumber,
		)
		return tr
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			tr.Interrupted = true
			break
		}

		item := w.processReference(ctx, tenant, ref)
		tr.record(item)
		metrics.ResponsesTotal.WithLabelValues(item.Outcome.String()).Inc()
		logItem(tenant, item)
	}

	slog.Info("tenant reconciled",
		"municipality_id", tenant.MunicipalityID,
		"org_number", tenant.OrgNumber,
		"listed", tr.Listed,
		"applied", tr.Applied,
		"unmatched", tr.Unmatched,
		"failed", tr.Failed,
	)

	return tr
}

// processReference fetches, matches, applies and retires one response.
// The response is deleted at the provider only after the letter save
// succeeded.
func (w *Worker) processReference(ctx context.Context, tenant models.Tenant, ref models.PendingEventReference) (item ItemResult) {
	item = ItemResult{ResponseKey: ref.ResponseKey}

	defer func() {
		if r := recover(); r != nil {
			item.Outcome = OutcomeFailed
			item.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	event, err := w.provider.FetchDetail(ctx, ref.ResponseKey, tenant)
	if err != nil {
		return fail(item, OutcomeFetchFailed, err)
	}
	if event == nil {
		return fail(item, OutcomeFetchFailed, errEmptyResponse)
	}

	item.LetterID = event.InternalID()
	if item.LetterID == "" {
		item.Outcome = OutcomeUnmatched
		return item
	}

	letter, err := w.store.FindByID(ctx, item.LetterID)
	if err != nil {
		return fail(item, OutcomeLookupFailed, err)
	}
	if letter == nil {
		item.Outcome = OutcomeUnmatched
		return item
	}

	previousStatus, previousSigning := letter.Status, letter.SigningStatus()
	mapper.Apply(letter, event)

	if err := w.store.Save(ctx, letter); err != nil {
		return fail(item, OutcomeSaveFailed, err)
	}

	w.publishChange(ctx, tenant, letter, previousStatus, previousSigning)

	if err := w.provider.Delete(ctx, ref.ResponseKey, tenant); err != nil {
		return fail(item, OutcomeCleanupFailed, err)
	}

	item.Outcome = OutcomeApplied
	return item
}

// publishChange announces a status change. Failures are logged only; they
// never hold back the provider cleanup.
func (w *Worker) publishChange(ctx context.Context, tenant models.Tenant, letter *models.Letter, previousStatus, previousSigning string) {
	if w.publisher == nil || !mapper.Changed(previousStatus, previousSigning, letter) {
		return
	}
	if err := w.publisher.PublishStatusChange(ctx, tenant, letter, previousStatus, previousSigning); err != nil {
		slog.Warn("failed to publish status change",
			"letter_id", letter.ID,
			"status", letter.Status,
			"error", err,
		)
	}
}

func fail(item ItemResult, outcome Outcome, err error) ItemResult {
	item.Outcome = outcome
	item.Err = err
	return item
}

func logItem(tenant models.Tenant, item ItemResult) {
	attrs := []any{
		"municipality_id", tenant.MunicipalityID,
		"org_number", tenant.OrgNumber,
		"response_key", item.ResponseKey,
		"letter_id", item.LetterID,
	}

	switch item.Outcome {
	case OutcomeApplied:
		slog.Info("response applied", attrs...)
	case OutcomeUnmatched:
		slog.Info("no letter matches response, leaving it at provider", attrs...)
	case OutcomeCleanupFailed:
		slog.Warn("letter saved but response could not be deleted",
			append(attrs, "error", item.Err)...)
	default:
		slog.Error("failed to process response",
			append(attrs, "outcome", item.Outcome.String(), "error", item.Err)...)
	}
}
