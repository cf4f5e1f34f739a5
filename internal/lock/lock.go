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

// Package lock provides a single-holder run lock using a Redis key with TTL.
// It keeps two replicas of the service from reconciling the same provider
// responses at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultKey is the Redis key guarding a reconciliation run.
	DefaultKey = "statussync:reconcile:lock"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another instance")

// releaseScript deletes the key only if it still carries our token, so a
// holder whose TTL ran out cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out run locks.
type Locker struct {
	rdb redis.UniversalClient
	key string
}

// NewLocker creates a locker for the given key. An empty key uses DefaultKey.
func NewLocker(rdb redis.UniversalClient, key string) *Locker {
	if key == "" {
		key = DefaultKey
	}
	return &Locker{rdb: rdb, key: key}
}

// Key returns the Redis key this locker guards.
func (l *Locker) Key() string { return l.key }

// Lease is a held lock.
type Lease struct {
	rdb   redis.UniversalClient
	key   string
	token string
}

// Acquire takes the lock for ttl. It returns ErrNotAcquired if the key is
// already held.
func (l *Locker) Acquire(ctx context.Context, ttl time.Duration) (*Lease, error) {
	token := uuid.NewString()

	// SET NX PX: only set if the key does not exist.
	ok, err := l.rdb.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock SETNX %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &Lease{rdb: l.rdb, key: l.key, token: token}, nil
}

// Release gives the lock back. Releasing an expired or foreign lock is a
// no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("lock release %s: %w", l.key, err)
	}
	return nil
}
