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

// Package tenant selects the tenants that need a reconciliation pass.
package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/drl/statussync/internal/models"
)

// PendingFinder is the store query the selector is built on.
// Implemented by letters.Store.
type PendingFinder interface {
	FindTenantsWithPendingSigning(ctx context.Context) ([]models.Tenant, error)
}

// Selector determines which tenants currently have letters awaiting a
// signing outcome.
type Selector struct {
	finder PendingFinder
}

// NewSelector creates a tenant selector.
func NewSelector(finder PendingFinder) *Selector {
	return &Selector{finder: finder}
}

// CandidateTenants returns the distinct tenants with at least one
// non-deleted letter whose signing status is pending, ordered by
// municipality and organisation number. An empty result is not an error.
//
// Tenants without a provider tenant key cannot be queried at the provider
// and are left out with a warning.
func (s *Selector) CandidateTenants(ctx context.Context) ([]models.Tenant, error) {
	found, err := s.finder.FindTenantsWithPendingSigning(ctx)
	if err != nil {
		return nil, fmt.Errorf("find tenants with pending signing: %w", err)
	}

	seen := make(map[string]bool, len(found))
	tenants := make([]models.Tenant, 0, len(found))
	for _, t := range found {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true

		if strings.TrimSpace(t.TenantKey) == "" {
			slog.Warn("skipping tenant without provider key",
				"tenant_id", t.ID,
				"municipality_id", t.MunicipalityID,
				"org_number", t.OrgNumber,
			)
			continue
		}
		tenants = append(tenants, t)
	}

	sort.SliceStable(tenants, func(i, j int) bool {
		if tenants[i].MunicipalityID != tenants[j].MunicipalityID {
			return tenants[i].MunicipalityID < tenants[j].MunicipalityID
		}
		return tenants[i].OrgNumber < tenants[j].OrgNumber
	})

	slog.Debug("candidate tenants selected", "count", len(tenants))
	return tenants, nil
}
