package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/civicplan/planschedule/pkg/errors"
)

var (
	// ErrLockNotAcquired is returned when the lock is already held elsewhere.
	ErrLockNotAcquired = errors.New(errors.CodeConflict, "failed to acquire lock")

	// ErrLockNotHeld is returned when unlocking a lock this owner does not hold.
	ErrLockNotHeld = errors.New(errors.CodeInvalidParam, "lock not held by this owner")
)

// unlockScript releases the lock only when the stored owner token matches,
// so an expired lock re-acquired by another instance is never released by
// the stale holder.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Mutex is a best-effort cross-instance lock.  Bulk recalculation runs take
// it so that overlapping cron triggers on separate instances do not rewrite
// the same schedules concurrently.
type Mutex struct {
	client *Client
	name   string
	token  string
	ttl    time.Duration
}

// NewMutex builds a mutex with the given name and TTL.  The TTL bounds how
// long a crashed holder can block other instances.
func NewMutex(client *Client, name string, ttl time.Duration) *Mutex {
	return &Mutex{
		client: client,
		name:   name,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// TryLock attempts to take the lock without waiting.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.rdb.SetNX(ctx, m.client.Key("lock:"+m.name), m.token, m.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CodeDatabaseError, "lock acquisition failed")
	}
	return ok, nil
}

// Lock takes the lock, retrying until ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrLockNotAcquired
		case <-ticker.C:
		}
	}
}

// Unlock releases the lock when still held by this owner.
func (m *Mutex) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, m.client.rdb, []string{m.client.Key("lock:" + m.name)}, m.token).Int()
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "lock release failed")
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
