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

// Package models defines the data structures shared across the status sync service.
package models

import "time"

// Letter statuses. The set is open: the provider may report statuses that
// are stored upper-cased without being listed here.
const (
	StatusNew     = "NEW"
	StatusSent    = "SENT"
	StatusPending = "PENDING"
	StatusSigned  = "SIGNED"
	StatusExpired = "EXPIRED"
)

// Signing statuses reported in the provider's completion payload.
const (
	SigningStatusPending   = "PENDING"
	SigningStatusCompleted = "COMPLETED"
)

// Tenant is a municipality + organisation scope under which letters are
// sent. TenantKey is the provider-side key used in provider URLs.
type Tenant struct {
	ID             string `json:"id"`
	MunicipalityID string `json:"municipality_id"`
	OrgNumber      string `json:"org_number"`
	TenantKey      string `json:"-"`
}

// Letter is a registered letter sent through the provider.
type Letter struct {
	ID                 string              `json:"id"`
	TenantID           string              `json:"tenant_id"`
	MunicipalityID     string              `json:"municipality_id"`
	Subject            string              `json:"subject,omitempty"`
	Status             string              `json:"status"`
	Deleted            bool                `json:"deleted"`
	SigningInformation *SigningInformation `json:"signing_information,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// SigningInformation holds the provider-side signing outcome of a letter.
type SigningInformation struct {
	Status       string     `json:"status,omitempty"`
	SignedAt     *time.Time `json:"signed_at,omitempty"`
	ContentKey   string     `json:"content_key,omitempty"`
	OrderRef     string     `json:"order_ref,omitempty"`
	Signature    string     `json:"signature,omitempty"`
	OCSPResponse string     `json:"ocsp_response,omitempty"`
	Signer       Signer     `json:"signer"`
	Device       Device     `json:"device"`
	StepUp       StepUp     `json:"step_up"`
}

// Signer identifies the person who signed.
type Signer struct {
	PersonalNumber string `json:"personal_number,omitempty"`
	GivenName      string `json:"given_name,omitempty"`
	Surname        string `json:"surname,omitempty"`
	Name           string `json:"name,omitempty"`
}

// Device describes the device used for signing.
type Device struct {
	IPAddress string `json:"ip_address,omitempty"`
}

// StepUp records step-up authentication. MRTD is nil until reported.
type StepUp struct {
	MRTD *bool `json:"mrtd,omitempty"`
}

// SigningStatus returns the signing status, or "" when no signing
// information has been recorded yet.
func (l *Letter) SigningStatus() string {
	if l == nil || l.SigningInformation == nil {
		return ""
	}
	return l.SigningInformation.Status
}
