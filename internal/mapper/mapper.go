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

// Package mapper merges provider events into local letter state.
//
// Merging uses patch semantics: a field present in the event overwrites the
// stored value, an absent field leaves it untouched. Each field has its own
// merge function so the rule can be checked field by field.
package mapper

import (
	"strings"

	"github.com/drl/statussync/internal/models"
)

// Apply merges event into letter in place. It performs no I/O and never
// fails; a nil event is a no-op.
func Apply(letter *models.Letter, event *models.ProviderEvent) {
	if letter == nil || event == nil {
		return
	}

	mergeLetterStatus(letter, event.Status)

	if letter.SigningInformation == nil {
		letter.SigningInformation = &models.SigningInformation{}
	}
	info := letter.SigningInformation

	mergeContentKey(info, event.ContentKey)
	mergeSignedAt(info, event)

	c := event.Completion
	if c == nil {
		return
	}
	mergeOrderRef(info, c.OrderRef)
	mergeSigningStatus(info, c.Status)
	mergeSignature(info, c.Signature)
	mergeOCSPResponse(info, c.OCSPResponse)
	if c.StepUp != nil {
		mergeMRTD(info, c.StepUp.MRTD)
	}
	if c.Device != nil {
		mergeIPAddress(info, c.Device.IPAddress)
	}
	if c.User != nil {
		mergeGivenName(info, c.User.GivenName)
		mergeName(info, c.User.Name)
		mergePersonalNumber(info, c.User.PersonalNumber)
		mergeSurname(info, c.User.Surname)
	}
}

// Changed reports whether the letter status or signing status differ
// between two snapshots of the same letter.
func Changed(beforeStatus, beforeSigning string, after *models.Letter) bool {
	if after == nil {
		return false
	}
	return beforeStatus != after.Status || beforeSigning != after.SigningStatus()
}

func mergeLetterStatus(l *models.Letter, v *string) {
	if v != nil {
		l.Status = strings.ToUpper(*v)
	}
}

func mergeContentKey(info *models.SigningInformation, v *string) {
	if v != nil {
		info.ContentKey = *v
	}
}

func mergeSignedAt(info *models.SigningInformation, event *models.ProviderEvent) {
	if event.SignedAt != nil {
		t := event.SignedAt.UTC()
		info.SignedAt = &t
	}
}

func mergeOrderRef(info *models.SigningInformation, v *string) {
	if v != nil {
		info.OrderRef = *v
	}
}

func mergeSigningStatus(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Status = strings.ToUpper(*v)
	}
}

func mergeSignature(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Signature = *v
	}
}

func mergeOCSPResponse(info *models.SigningInformation, v *string) {
	if v != nil {
		info.OCSPResponse = *v
	}
}

func mergeMRTD(info *models.SigningInformation, v *bool) {
	if v != nil {
		mrtd := *v
		info.StepUp.MRTD = &mrtd
	}
}

func mergeIPAddress(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Device.IPAddress = *v
	}
}

func mergeGivenName(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Signer.GivenName = *v
	}
}

func mergeName(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Signer.Name = *v
	}
}

func mergePersonalNumber(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Signer.PersonalNumber = *v
	}
}

func mergeSurname(info *models.SigningInformation, v *string) {
	if v != nil {
		info.Signer.Surname = *v
	}
}
