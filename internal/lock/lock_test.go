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

package lock

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocker(rdb, ""), s
}

func TestAcquireAndRelease(t *testing.T) {
	l, s := newTestLocker(t)
	ctx := t.Context()

	lease, err := l.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, s.Exists(DefaultKey))

	_, err = l.Acquire(ctx, time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, lease.Release(ctx))
	assert.False(t, s.Exists(DefaultKey))

	again, err := l.Acquire(ctx, time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLockExpires(t *testing.T) {
	l, s := newTestLocker(t)
	ctx := t.Context()

	_, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)

	s.FastForward(2 * time.Second)

	_, err = l.Acquire(ctx, time.Second)
	assert.NoError(t, err)
}

func TestReleaseDoesNotStealForeignLock(t *testing.T) {
	l, s := newTestLocker(t)
	ctx := t.Context()

	stale, err := l.Acquire(ctx, time.Second)
	require.NoError(t, err)
	s.FastForward(2 * time.Second)

	current, err := l.Acquire(ctx, time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale.Release(ctx))
	assert.True(t, s.Exists(DefaultKey), "stale lease must not release the current holder")

	require.NoError(t, current.Release(ctx))
	assert.False(t, s.Exists(DefaultKey))
}

func TestNilLeaseRelease(t *testing.T) {
	var lease *Lease
	assert.NoError(t, lease.Release(t.Context()))
}

func TestCustomKey(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	l := NewLocker(rdb, "custom:lock")
	assert.Equal(t, "custom:lock", l.Key())

	lease, err := l.Acquire(t.Context(), time.Minute)
	require.NoError(t, err)
	assert.True(t, s.Exists("custom:lock"))
	require.NoError(t, lease.Release(t.Context()))
}

func TestAcquireRedisDown(t *testing.T) {
	l, s := newTestLocker(t)
	s.Close()

	_, err := l.Acquire(t.Context(), time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
}
