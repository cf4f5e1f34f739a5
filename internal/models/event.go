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

package models

import "time"

// PendingEventReference is one entry of the provider's pending-response
// listing. It only lives for the duration of a reconciliation pass.
type PendingEventReference struct {
	ResponseKey string `json:"response_key"`
	Status      string `json:"status"`
}

// ProviderEvent is the fully resolved provider response for a reference.
//
// Every optional field is a pointer: nil means "not present in the event",
// which is different from an empty value and must never clear stored state.
type ProviderEvent struct {
	Status          *string          `json:"status,omitempty"`
	SignedAt        *time.Time       `json:"signed_at,omitempty"`
	ContentKey      *string          `json:"content_key,omitempty"`
	SenderReference *SenderReference `json:"sender_reference,omitempty"`
	Completion      *Completion      `json:"bankid_completion,omitempty"`
}

// SenderReference carries our own letter ID back from the provider.
type SenderReference struct {
	InternalID string `json:"internal_id"`
}

// Completion is the e-signing completion payload.
type Completion struct {
	OrderRef     *string           `json:"order_ref,omitempty"`
	Status       *string           `json:"status,omitempty"`
	Signature    *string           `json:"signature,omitempty"`
	OCSPResponse *string           `json:"ocsp_response,omitempty"`
	StepUp       *CompletionStepUp `json:"step_up,omitempty"`
	Device       *CompletionDevice `json:"device,omitempty"`
	User         *CompletionUser   `json:"user,omitempty"`
}

type CompletionStepUp struct {
	MRTD *bool `json:"mrtd,omitempty"`
}

type CompletionDevice struct {
	IPAddress *string `json:"ip_address,omitempty"`
}

type CompletionUser struct {
	PersonalNumber *string `json:"personal_number,omitempty"`
	Name           *string `json:"name,omitempty"`
	GivenName      *string `json:"given_name,omitempty"`
	Surname        *string `json:"surname,omitempty"`
}

// InternalID returns the letter ID the event refers to, or "" if the
// event carries no sender reference.
func (e *ProviderEvent) InternalID() string {
	if e == nil || e.SenderReference == nil {
		return ""
	}
	return e.SenderReference.InternalID
}
