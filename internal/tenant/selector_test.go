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

package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drl/statussync/internal/models"
)

type stubFinder struct {
	tenants []models.Tenant
	err     error
}

func (f stubFinder) FindTenantsWithPendingSigning(context.Context) ([]models.Tenant, error) {
	return f.tenants, f.err
}

func TestCandidateTenants_Empty(t *testing.T) {
	s := NewSelector(stubFinder{})

	tenants, err := s.CandidateTenants(context.Background())

	require.NoError(t, err)
	assert.Empty(t, tenants)
}

func TestCandidateTenants_DedupesAndSorts(t *testing.T) {
	s := NewSelector(stubFinder{tenants: []models.Tenant{
		{ID: "t3", MunicipalityID: "2281", OrgNumber: "5591628136", TenantKey: "k3"},
		{ID: "t1", MunicipalityID: "2260", OrgNumber: "2120002411", TenantKey: "k1"},
		{ID: "t3", MunicipalityID: "2281", OrgNumber: "5591628136", TenantKey: "k3"},
		{ID: "t2", MunicipalityID: "2281", OrgNumber: "2120002411", TenantKey: "k2"},
	}})

	tenants, err := s.CandidateTenants(context.Background())

	require.NoError(t, err)
	require.Len(t, tenants, 3)
	assert.Equal(t, "t1", tenants[0].ID)
	assert.Equal(t, "t2", tenants[1].ID)
	assert.Equal(t, "t3", tenants[2].ID)
}

func TestCandidateTenants_SkipsTenantWithoutKey(t *testing.T) {
	s := NewSelector(stubFinder{tenants: []models.Tenant{
		{ID: "t1", MunicipalityID: "2281", TenantKey: " "},
		{ID: "t2", MunicipalityID: "2281", TenantKey: "k2"},
	}})

	tenants, err := s.CandidateTenants(context.Background())

	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, "t2", tenants[0].ID)
}

func TestCandidateTenants_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewSelector(stubFinder{err: boom})

	_, err := s.CandidateTenants(context.Background())

	require.ErrorIs(t, err, boom)
}
