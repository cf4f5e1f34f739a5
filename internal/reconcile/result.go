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

package reconcile

import (
	"time"
)

// Outcome classifies what happened to a single provider response.
type Outcome int

const (
	// OutcomeApplied: the letter was saved and the response deleted.
	OutcomeApplied Outcome = iota
	// OutcomeUnmatched: no non-deleted letter matches; the response stays
	// at the provider for a later run.
	OutcomeUnmatched
	// OutcomeFetchFailed: the response detail could not be fetched.
	OutcomeFetchFailed
	// OutcomeLookupFailed: the letter lookup itself failed.
	OutcomeLookupFailed
	// OutcomeSaveFailed: the letter could not be saved; the response stays.
	OutcomeSaveFailed
	// OutcomeCleanupFailed: the letter was saved but the response could
	// not be deleted. Re-applying it later is harmless.
	OutcomeCleanupFailed
	// OutcomeFailed: an unexpected failure such as a panic.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeFetchFailed:
		return "fetch_failed"
	case OutcomeLookupFailed:
		return "lookup_failed"
	case OutcomeSaveFailed:
		return "save_failed"
	case OutcomeCleanupFailed:
		return "cleanup_failed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Committed reports whether the local letter state was durably written.
func (o Outcome) Committed() bool {
	return o == OutcomeApplied || o == OutcomeCleanupFailed
}

// ItemResult is the result of processing one provider response.
type ItemResult struct {
	ResponseKey string
	LetterID    string
	Outcome     Outcome
	Err         error
}

// TenantResult summarises one tenant's part of a run.
type TenantResult struct {
	TenantID       string `json:"tenant_id"`
	MunicipalityID string `json:"municipality_id"`
	OrgNumber      string `json:"org_number"`
	Listed         int    `json:"listed"`
	Applied        int    `json:"applied"`
	Unmatched      int    `json:"unmatched"`
	Failed         int    `json:"failed"`
	CleanupFailed  int    `json:"cleanup_failed"`
	ListFailed     bool   `json:"list_failed,omitempty"`
	Error          string `json:"error,omitempty"`
	Interrupted    bool   `json:"interrupted,omitempty"`
}

func (tr *TenantResult) record(item ItemResult) {
	switch item.Outcome {
	case OutcomeApplied:
		tr.Applied++
	case OutcomeUnmatched:
		tr.Unmatched++
	case OutcomeCleanupFailed:
		tr.CleanupFailed++
	default:
		tr.Failed++
	}
}

// RunResult summarises a completed reconciliation run.
type RunResult struct {
	StartedAt      time.Time      `json:"started_at"`
	Elapsed        time.Duration  `json:"elapsed_ns"`
	Tenants        []TenantResult `json:"tenants"`
	TotalApplied   int            `json:"total_applied"`
	TotalUnmatched int            `json:"total_unmatched"`
	TotalFailed    int            `json:"total_failed"`
	SelectError    string         `json:"select_error,omitempty"`
	Interrupted    bool           `json:"interrupted,omitempty"`
}

func (r *RunResult) add(tr TenantResult) {
	r.Tenants = append(r.Tenants, tr)
	r.TotalApplied += tr.Applied + tr.CleanupFailed
	r.TotalUnmatched += tr.Unmatched
	r.TotalFailed += tr.Failed
}

// ProviderReachable reports whether the provider answered at least one
// listing call. A run without candidate tenants says nothing about the
// provider and counts as reachable.
func (r *RunResult) ProviderReachable() bool {
	if r == nil || len(r.Tenants) == 0 {
		return true
	}
	for _, tr := range r.Tenants {
		if !tr.ListFailed {
			return true
		}
	}
	return false
}
