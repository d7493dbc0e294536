package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only if it still holds our token, so a
// holder whose TTL expired cannot release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript resets the TTL of a key we still own.
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

const defaultLockTTL = 10 * time.Second

// Redis is a Locker backed by SET NX PX.  While a lock is held its TTL is
// renewed every third of the TTL, so a critical section may outlive the
// TTL; the TTL only bounds how long a crashed holder blocks others.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedis returns a Locker storing keys under prefix with the given TTL.
func NewRedis(rdb *redis.Client, prefix string, ttl time.Duration, log logrus.FieldLogger) *Redis {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, log: log}
}

func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()
	backoff := 10 * time.Millisecond
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(full, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The caller's context may already be cancelled; release anyway.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{full}, token).Err(); err != nil {
				l.log.WithError(err).WithField("key", full).Warn("lock release failed")
			}
		})
	}, nil
}

// keepAlive extends the lease until stop is closed or the key no longer
// carries token.
func (l *Redis) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	every := l.ttl / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := extendScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.log.WithError(err).WithField("key", key).Warn("lock renewal failed")
			continue
		}
		if n == 0 {
			l.log.WithField("key", key).Error("lock lost before release")
			return
		}
	}
}
