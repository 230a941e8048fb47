// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package keylock serializes work on a single key.

Architecture:

  - Local: Reference-counted mutexes held in process memory. Used when the API
    runs as a single replica.
  - Redis: A SET NX PX lease released by a compare-and-delete script. Used when
    several replicas share one database and one artifact store.

Both implementations honour context cancellation while waiting.
*/
package keylock

import (
	"context"
	"sync"
)

// Locker acquires exclusive access to a key. The returned release function
// must be called exactly once.
type Locker interface {
	Lock(context context.Context, key string) (release func(), err error)
}

// # Local

type slot struct {
	token   chan struct{}
	waiters int
}

// Local is an in-process keyed mutex. The zero value is not usable; use [NewLocal].
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewLocal creates an empty keyed mutex.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or waitContext is done.
func (local *Local) Lock(waitContext context.Context, key string) (func(), error) {
	local.mu.Lock()
	held, ok := local.slots[key]
	if !ok {
		held = &slot{token: make(chan struct{}, 1)}
		local.slots[key] = held
	}
	held.waiters++
	local.mu.Unlock()

	select {
	case held.token <- struct{}{}:
	case <-waitContext.Done():
		local.forget(key, held)
		return nil, waitContext.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-held.token
			local.forget(key, held)
		})
	}, nil
}

// forget drops a slot once nobody holds or waits for it.
func (local *Local) forget(key string, held *slot) {
	local.mu.Lock()
	defer local.mu.Unlock()

	held.waiters--
	if held.waiters == 0 {
		delete(local.slots, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (local *Local) Len() int {
	local.mu.Lock()
	defer local.mu.Unlock()
	return len(local.slots)
}
