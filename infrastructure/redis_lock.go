package infrastructure

import (
	"context"
	"fmt"
	"time"

	"powerball/service"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SyncLockKey is the Redis key held while a sync runs
const SyncLockKey = "powerball:sync:lock"

// releaseLockScript deletes the key only while it still holds our token
const releaseLockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// RedisSyncLock is a SyncGuard shared by every process using the same Redis
type RedisSyncLock struct {
	client   *redis.Client
	key      string
	ttl      time.Duration
	newToken func() string
}

// NewRedisSyncLock creates a lock on SyncLockKey that expires after ttl
func NewRedisSyncLock(client *redis.Client, ttl time.Duration) *RedisSyncLock {
	return &RedisSyncLock{
		client:   client,
		key:      SyncLockKey,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

// NewRedisClient parses a redis:// URL and verifies the server answers
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// TryAcquire implements service.SyncGuard
func (l *RedisSyncLock) TryAcquire(ctx context.Context) (func(), error) {
	token := l.newToken()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !acquired {
		return nil, service.ErrSyncInProgress
	}

	log.WithFields(log.Fields{
		"key": l.key,
		"ttl": l.ttl,
	}).Debug("Acquired sync lock")

	return func() {
		// The run may have outlived its caller's context; release regardless
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		released, err := l.client.Eval(releaseCtx, releaseLockScript, []string{l.key}, token).Int64()
		if err != nil {
			log.WithError(err).Warn("Failed to release sync lock")
			return
		}
		if released == 0 {
			log.WithField("key", l.key).Warn("Sync lock expired before release")
		}
	}, nil
}
