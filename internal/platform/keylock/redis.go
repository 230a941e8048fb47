// Copyright (c) 2026 Atelier. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package keylock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/atelier/internal/platform/apperr"
)

// releaseScript deletes the lease only while it still carries our token, so an
// expired lease taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease-based lock shared between replicas.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

// NewRedis creates a lock whose leases expire after ttl if never released.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  50 * time.Millisecond,
		logger: logger,
	}
}

/*
Lock acquires the lease for key, polling until it is free.

Parameters:
  - waitContext: Bounds the wait; cancellation aborts acquisition
  - key: Lock name, prefixed before use

Returns:
  - func(): Releases the lease
  - error: apperr.ServiceUnavailable when the wait is abandoned or Redis fails
*/
func (lock *Redis) Lock(waitContext context.Context, key string) (func(), error) {
	name := lock.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lock.retry)
	defer ticker.Stop()

	for {
		acquired, err := lock.client.SetNX(waitContext, name, token, lock.ttl).Result()
		if err != nil {
			return nil, apperr.ServiceUnavailable(fmt.Sprintf("lock %s unavailable: %v", key, err))
		}
		if acquired {
			break
		}

		select {
		case <-ticker.C:
		case <-waitContext.Done():
			return nil, apperr.ServiceUnavailable("Record is busy, please retry")
		}
	}

	return func() {
		// The caller's context may already be cancelled; release regardless.
		releaseContext, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseContext, lock.client, []string{name}, token).Err(); err != nil {
			lock.logger.Warn("record_lock_release_failed",
				slog.String("key", name),
				slog.Any("error", err),
			)
		}
	}, nil
}
