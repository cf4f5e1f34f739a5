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

// Package letters provides the Postgres-backed store for registered letters,
// their signing information and the tenants that own them.
package letters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/drl/statussync/internal/models"
)

// ErrLetterNotFound is returned by Save when the letter row no longer exists.
var ErrLetterNotFound = errors.New("letter not found")

// Store provides the letter and tenant queries used by reconciliation.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a letter store backed by the given Postgres pool.
// It ensures the schema exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure letter schema: %w", err)
	}
	slog.Info("letter store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id              TEXT PRIMARY KEY,
			municipality_id TEXT NOT NULL,
			org_number      TEXT NOT NULL,
			tenant_key      TEXT NOT NULL,
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE(municipality_id, org_number)
		);
		CREATE TABLE IF NOT EXISTS letters (
			id              TEXT PRIMARY KEY,
			tenant_id       TEXT NOT NULL REFERENCES tenants(id),
			municipality_id TEXT NOT NULL,
			subject         TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'NEW',
			deleted         BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS signing_information (
			letter_id       TEXT PRIMARY KEY REFERENCES letters(id),
			status          TEXT,
			signed_at       TIMESTAMPTZ,
			content_key     TEXT,
			order_ref       TEXT,
			signature       TEXT,
			ocsp_response   TEXT,
			mrtd            BOOLEAN,
			ip_address      TEXT,
			personal_number TEXT,
			given_name      TEXT,
			surname         TEXT,
			name            TEXT,
			updated_at      TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_letters_tenant ON letters(tenant_id);
		CREATE INDEX IF NOT EXISTS idx_letters_deleted ON letters(deleted);
		CREATE INDEX IF NOT EXISTS idx_signing_status ON signing_information(status);
	`)
	return err
}

// FindTenantsWithPendingSigning returns the distinct tenants owning at least
// one non-deleted letter whose signing status is PENDING or not yet recorded.
// A signing row without a status has no outcome yet and counts as pending.
func (s *Store) FindTenantsWithPendingSigning(ctx context.Context) ([]models.Tenant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT t.id, t.municipality_id, t.org_number, t.tenant_key
		FROM tenants t
		JOIN letters l ON l.tenant_id = t.id
		LEFT JOIN signing_information si ON si.letter_id = l.id
		WHERE l.deleted = FALSE
		  AND (si.letter_id IS NULL OR si.status IS NULL OR si.status = $1)
		ORDER BY t.municipality_id, t.org_number
	`, models.SigningStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.MunicipalityID, &t.OrgNumber, &t.TenantKey); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// FindByID returns the non-deleted letter with the given ID, or nil if
// there is none.
func (s *Store) FindByID(ctx context.Context, id string) (*models.Letter, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT l.id, l.tenant_id, l.municipality_id, l.subject, l.status, l.deleted,
		       l.created_at, l.updated_at,
		       si.letter_id, si.status, si.signed_at, si.content_key, si.order_ref,
		       si.signature, si.ocsp_response, si.mrtd, si.ip_address,
		       si.personal_number, si.given_name, si.surname, si.name
		FROM letters l
		LEFT JOIN signing_information si ON si.letter_id = l.id
		WHERE l.id = $1 AND l.deleted = FALSE
	`, id)
	return scanLetter(row)
}

// Save writes the letter status and its signing information in one
// transaction. The deleted flag is never written; saving a letter that was
// soft-deleted in the meantime fails with ErrLetterNotFound.
func (s *Store) Save(ctx context.Context, l *models.Letter) error {
	if l == nil {
		return fmt.Errorf("save letter: nil letter")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE letters
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = FALSE
		RETURNING updated_at
	`, l.Status, l.ID).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("save letter %s: %w", l.ID, ErrLetterNotFound)
	}
	if err != nil {
		return fmt.Errorf("update letter %s: %w", l.ID, err)
	}

	if si := l.SigningInformation; si != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO signing_information
				(letter_id, status, signed_at, content_key, order_ref, signature,
				 ocsp_response, mrtd, ip_address, personal_number, given_name, surname, name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (letter_id) DO UPDATE SET
				status          = EXCLUDED.status,
				signed_at       = EXCLUDED.signed_at,
				content_key     = EXCLUDED.content_key,
				order_ref       = EXCLUDED.order_ref,
				signature       = EXCLUDED.signature,
				ocsp_response   = EXCLUDED.ocsp_response,
				mrtd            = EXCLUDED.mrtd,
				ip_address      = EXCLUDED.ip_address,
				personal_number = EXCLUDED.personal_number,
				given_name      = EXCLUDED.given_name,
				surname         = EXCLUDED.surname,
				name            = EXCLUDED.name,
				updated_at      = NOW()
		`, l.ID, nullable(si.Status), si.SignedAt, nullable(si.ContentKey), nullable(si.OrderRef),
			nullable(si.Signature), nullable(si.OCSPResponse), si.StepUp.MRTD, nullable(si.Device.IPAddress),
			nullable(si.Signer.PersonalNumber), nullable(si.Signer.GivenName),
			nullable(si.Signer.Surname), nullable(si.Signer.Name))
		if err != nil {
			return fmt.Errorf("upsert signing information %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit letter %s: %w", l.ID, err)
	}

	l.UpdatedAt = updatedAt
	return nil
}

// signingRow holds the nullable columns of a LEFT JOINed signing_information row.
type signingRow struct {
	LetterID       *string
	Status         *string
	SignedAt       *time.Time
	ContentKey     *string
	OrderRef       *string
	Signature      *string
	OCSPResponse   *string
	MRTD           *bool
	IPAddress      *string
	PersonalNumber *string
	GivenName      *string
	Surname        *string
	Name           *string
}

// toModel converts the row to SigningInformation, or nil if the join found
// no row.
func (r signingRow) toModel() *models.SigningInformation {
	if r.LetterID == nil {
		return nil
	}
	return &models.SigningInformation{
		Status:       deref(r.Status),
		SignedAt:     r.SignedAt,
		ContentKey:   deref(r.ContentKey),
		OrderRef:     deref(r.OrderRef),
		Signature:    deref(r.Signature),
		OCSPResponse: deref(r.OCSPResponse),
		Signer: models.Signer{
			PersonalNumber: deref(r.PersonalNumber),
			GivenName:      deref(r.GivenName),
			Surname:        deref(r.Surname),
			Name:           deref(r.Name),
		},
		Device: models.Device{IPAddress: deref(r.IPAddress)},
		StepUp: models.StepUp{MRTD: r.MRTD},
	}
}

// scanLetter scans a single letter row joined with its signing information.
func scanLetter(row pgx.Row) (*models.Letter, error) {
	var l models.Letter
	var si signingRow
	err := row.Scan(
		&l.ID, &l.TenantID, &l.MunicipalityID, &l.Subject, &l.Status, &l.Deleted,
		&l.CreatedAt, &l.UpdatedAt,
		&si.LetterID, &si.Status, &si.SignedAt, &si.ContentKey, &si.OrderRef,
		&si.Signature, &si.OCSPResponse, &si.MRTD, &si.IPAddress,
		&si.PersonalNumber, &si.GivenName, &si.Surname, &si.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.SigningInformation = si.toModel()
	return &l, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullable maps "" to NULL so unset fields stay NULL in Postgres.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
