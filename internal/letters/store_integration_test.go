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

package letters

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drl/statussync/internal/models"
)

func integrationStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("LETTERS_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("LETTERS_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s, err := NewStore(ctx, pool)
	require.NoError(t, err)
	return s, pool
}

func seedTenant(t *testing.T, pool *pgxpool.Pool) models.Tenant {
	t.Helper()
	tenant := models.Tenant{
		ID:             uuid.NewString(),
		MunicipalityID: "2281",
		OrgNumber:      uuid.NewString()[:10],
		TenantKey:      "key-" + uuid.NewString()[:8],
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO tenants (id, municipality_id, org_number, tenant_key) VALUES ($1, $2, $3, $4)
	`, tenant.ID, tenant.MunicipalityID, tenant.OrgNumber, tenant.TenantKey)
	require.NoError(t, err)
	return tenant
}

// noStatus seeds a signing_information row whose status is NULL.
const noStatus = "\x00"

func seedLetter(t *testing.T, pool *pgxpool.Pool, tenant models.Tenant, deleted bool, signingStatus string) string {
	t.Helper()
	id := uuid.NewString()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		INSERT INTO letters (id, tenant_id, municipality_id, subject, status, deleted)
		VALUES ($1, $2, $3, 'Decision', 'SENT', $4)
	`, id, tenant.ID, tenant.MunicipalityID, deleted)
	require.NoError(t, err)
	if signingStatus != "" {
		var status *string
		if signingStatus != noStatus {
			status = &signingStatus
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO signing_information (letter_id, status) VALUES ($1, $2)
		`, id, status)
		require.NoError(t, err)
	}
	return id
}

func containsTenant(tenants []models.Tenant, id string) bool {
	for _, t := range tenants {
		if t.ID == id {
			return true
		}
	}
	return false
}

func TestPostgresIntegration_FindTenantsWithPendingSigning(t *testing.T) {
	s, pool := integrationStore(t)

	pending := seedTenant(t, pool)
	seedLetter(t, pool, pending, false, models.SigningStatusPending)

	implicit := seedTenant(t, pool)
	seedLetter(t, pool, implicit, false, "")

	statusless := seedTenant(t, pool)
	seedLetter(t, pool, statusless, false, noStatus)

	done := seedTenant(t, pool)
	seedLetter(t, pool, done, false, models.SigningStatusCompleted)

	deleted := seedTenant(t, pool)
	seedLetter(t, pool, deleted, true, models.SigningStatusPending)

	tenants, err := s.FindTenantsWithPendingSigning(context.Background())
	require.NoError(t, err)

	assert.True(t, containsTenant(tenants, pending.ID))
	assert.True(t, containsTenant(tenants, implicit.ID))
	assert.True(t, containsTenant(tenants, statusless.ID), "signing row without status is still pending")
	assert.False(t, containsTenant(tenants, done.ID))
	assert.False(t, containsTenant(tenants, deleted.ID))
}

func TestPostgresIntegration_FindByIDSkipsDeleted(t *testing.T) {
	s, pool := integrationStore(t)
	tenant := seedTenant(t, pool)
	id := seedLetter(t, pool, tenant, true, "")

	l, err := s.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, l)

	l, err = s.FindByID(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestPostgresIntegration_SaveRoundTrip(t *testing.T) {
	s, pool := integrationStore(t)
	tenant := seedTenant(t, pool)
	id := seedLetter(t, pool, tenant, false, "")
	ctx := context.Background()

	l, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Nil(t, l.SigningInformation)

	mrtd := true
	signedAt := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	l.Status = models.StatusSigned
	l.SigningInformation = &models.SigningInformation{
		Status:   models.SigningStatusCompleted,
		SignedAt: &signedAt,
		OrderRef: "order-1",
		Signer:   models.Signer{Name: "Jane Doe"},
		Device:   models.Device{IPAddress: "9.9.9.9"},
		StepUp:   models.StepUp{MRTD: &mrtd},
	}
	require.NoError(t, s.Save(ctx, l))

	got, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusSigned, got.Status)
	require.NotNil(t, got.SigningInformation)
	assert.Equal(t, models.SigningStatusCompleted, got.SigningInformation.Status)
	assert.Equal(t, "order-1", got.SigningInformation.OrderRef)
	assert.Equal(t, "Jane Doe", got.SigningInformation.Signer.Name)
	assert.Equal(t, "9.9.9.9", got.SigningInformation.Device.IPAddress)
	assert.True(t, got.SigningInformation.SignedAt.Equal(signedAt))
	require.NotNil(t, got.SigningInformation.StepUp.MRTD)
	assert.True(t, *got.SigningInformation.StepUp.MRTD)
}

func TestPostgresIntegration_SaveMissingLetter(t *testing.T) {
	s, _ := integrationStore(t)

	err := s.Save(context.Background(), &models.Letter{ID: uuid.NewString(), Status: "SENT"})
	require.ErrorIs(t, err, ErrLetterNotFound)
}

func TestPostgresIntegration_StatuslessSaveKeepsTenantPending(t *testing.T) {
	s, pool := integrationStore(t)
	tenant := seedTenant(t, pool)
	id := seedLetter(t, pool, tenant, false, "")
	ctx := context.Background()

	l, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, l)

	// A delivery event without completion payload leaves an empty signing row.
	l.Status = "DELIVERED"
	l.SigningInformation = &models.SigningInformation{}
	require.NoError(t, s.Save(ctx, l))

	tenants, err := s.FindTenantsWithPendingSigning(ctx)
	require.NoError(t, err)
	assert.True(t, containsTenant(tenants, tenant.ID))
}

func TestPostgresIntegration_SaveDoesNotRestoreDeleted(t *testing.T) {
	s, pool := integrationStore(t)
	tenant := seedTenant(t, pool)
	id := seedLetter(t, pool, tenant, false, "")
	ctx := context.Background()

	l, err := s.FindByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = pool.Exec(ctx, `UPDATE letters SET deleted = TRUE WHERE id = $1`, id)
	require.NoError(t, err)

	l.Status = models.StatusSigned
	err = s.Save(ctx, l)
	require.ErrorIs(t, err, ErrLetterNotFound)

	var deleted bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT deleted FROM letters WHERE id = $1`, id).Scan(&deleted))
	assert.True(t, deleted)
}
