package lock

import "context"

// KeyLock guards at-most-one in-flight mint per batch identifier. Acquire
// returns a release token; Release is a no-op when the token no longer owns
// the lock (e.g. after TTL expiry).
type KeyLock interface {
	Acquire(ctx context.Context, key string) (token string, acquired bool, err error)
	Release(ctx context.Context, key string, token string) error
}
