// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keylock_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/atelier/internal/platform/keylock"
)

/*
TestLocal_MutualExclusion verifies that holders of one key never overlap.
*/
func TestLocal_MutualExclusion(t *testing.T) {
	locker := keylock.NewLocal()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), "slider:1")
			if !assert.NoError(t, err) {
				return
			}
			current := inside.Add(1)
			for {
				seen := maxInside.Load()
				if current <= seen || maxInside.CompareAndSwap(seen, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
	assert.Equal(t, 0, locker.Len())
}

/*
TestLocal_IndependentKeys verifies different keys do not block each other.
*/
func TestLocal_IndependentKeys(t *testing.T) {
	locker := keylock.NewLocal()

	releaseA, err := locker.Lock(context.Background(), "slider:1")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	releaseB, err := locker.Lock(ctx, "slider:2")
	require.NoError(t, err)
	releaseB()
}

/*
TestLocal_ContextCancel verifies a waiter gives up when its context ends.
*/
func TestLocal_ContextCancel(t *testing.T) {
	locker := keylock.NewLocal()

	release, err := locker.Lock(context.Background(), "service:7")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "service:7")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Releasing twice is harmless and leaves no residue.
	release()
	release()
	assert.Equal(t, 0, locker.Len())
}

/*
TestRedis_Lease exercises the shared lock against a live server.
Set ATELIER_TEST_REDIS_URL to run it.
*/
func TestRedis_Lease(t *testing.T) {
	url := os.Getenv("ATELIER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ATELIER_TEST_REDIS_URL not set")
	}

	options, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(options)
	defer client.Close()

	locker := keylock.NewRedis(client, "atelier:test:lock:", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	release, err := locker.Lock(context.Background(), "slider:1")
	require.NoError(t, err)

	// 1. A second acquirer times out while the lease is held
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "slider:1")
	require.Error(t, err)

	// 2. After release it succeeds
	release()
	again, err := locker.Lock(context.Background(), "slider:1")
	require.NoError(t, err)
	again()
}
