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

// Package events publishes letter status changes to a Redis list.
// Downstream consumers (notification senders, case-management hooks)
// read the list with BRPOP.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/drl/statussync/internal/models"
)

// DefaultQueue is the list status changes are pushed to.
const DefaultQueue = "letters:status-changed"

// LetterStatusChanged is the message pushed for every applied change.
type LetterStatusChanged struct {
	ID                    string    `json:"id"`
	LetterID              string    `json:"letter_id"`
	TenantID              string    `json:"tenant_id"`
	MunicipalityID        string    `json:"municipality_id"`
	PreviousStatus        string    `json:"previous_status"`
	Status                string    `json:"status"`
	PreviousSigningStatus string    `json:"previous_signing_status,omitempty"`
	SigningStatus         string    `json:"signing_status,omitempty"`
	OccurredAt            time.Time `json:"occurred_at"`
}

// Publisher sends status-change messages to Redis.
type Publisher struct {
	rdb       redis.UniversalClient
	queueName string
	now       func() time.Time
}

// NewPublisher creates a publisher targeting the given list. An empty name
// uses DefaultQueue.
func NewPublisher(rdb redis.UniversalClient, queueName string) *Publisher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
		now:       time.Now,
	}
}

// PublishStatusChange pushes a LetterStatusChanged message for the letter.
func (p *Publisher) PublishStatusChange(ctx context.Context, tenant models.Tenant, letter *models.Letter, previousStatus, previousSigningStatus string) error {
	if letter == nil {
		return fmt.Errorf("publish status change: nil letter")
	}

	msg := LetterStatusChanged{
		ID:                    uuid.NewString(),
		LetterID:              letter.ID,
		TenantID:              tenant.ID,
		MunicipalityID:        letter.MunicipalityID,
		PreviousStatus:        previousStatus,
		Status:                letter.Status,
		PreviousSigningStatus: previousSigningStatus,
		SigningStatus:         letter.SigningStatus(),
		OccurredAt:            p.now().UTC(),
	}
	if msg.MunicipalityID == "" {
		msg.MunicipalityID = tenant.MunicipalityID
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal status change: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, body).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Debug("published status change",
		"event_id", msg.ID,
		"letter_id", letter.ID,
		"status", msg.Status,
		"queue", p.queueName,
	)

	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
