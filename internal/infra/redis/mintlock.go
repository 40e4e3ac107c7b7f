package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/tracerx/tracerx/internal/lock"
)

const defaultMintLockTTL = 30 * time.Second

// releaseScript deletes the lock only if the caller still owns it, so a
// slow request cannot release a lock re-acquired by someone else.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.KeyLock = (*MintLock)(nil)

// MintLock is a distributed per-batch mutual exclusion guard backed by
// Redis SET NX. The TTL bounds how long a crashed holder can block a batch.
type MintLock struct {
	client   *goredis.Client
	ttl      time.Duration
	newToken func() string
	script   *goredis.Script
}

func NewMintLock(client *goredis.Client, ttl time.Duration) (*MintLock, error) {
	return newMintLock(client, ttl, uuid.NewString)
}

func newMintLock(client *goredis.Client, ttl time.Duration, tokenFn func() string) (*MintLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultMintLockTTL
	}
	if tokenFn == nil {
		tokenFn = uuid.NewString
	}

	return &MintLock{
		client:   client,
		ttl:      ttl,
		newToken: tokenFn,
		script:   releaseScript,
	}, nil
}

func (l *MintLock) Acquire(ctx context.Context, key string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, fmt.Errorf("mint lock is not initialized")
	}

	normalized := strings.TrimSpace(key)
	if normalized == "" {
		return "", false, fmt.Errorf("lock key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	token := l.newToken()
	acquired, err := l.client.SetNX(ctx, lockKey(normalized), token, l.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire mint lock: %w", err)
	}
	if !acquired {
		return "", false, nil
	}

	return token, true, nil
}

func (l *MintLock) Release(ctx context.Context, key string, token string) error {
	if l == nil || l.client == nil || l.script == nil {
		return fmt.Errorf("mint lock is not initialized")
	}

	normalized := strings.TrimSpace(key)
	if normalized == "" {
		return fmt.Errorf("lock key is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := l.script.Run(ctx, l.client, []string{lockKey(normalized)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release mint lock: %w", err)
	}

	return nil
}

func lockKey(batchID string) string {
	return fmt.Sprintf("mintlock:%s", batchID)
}
