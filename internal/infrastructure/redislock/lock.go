package redislock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"txexport/internal/application"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "txexport:lock:"
	DefaultTTL = 30 * time.Minute
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another run is left alone.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// refreshScript extends the lease only while the key still holds our token.
const refreshScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type Config struct {
	Addr string
	TTL  time.Duration
}

// Locker is an application.RunLocker shared by every process pointing at the
// same Redis. A held lock is refreshed every TTL/3 until released, so runs
// longer than the TTL keep it; a crashed holder loses it after one TTL.
type Locker struct {
	client client
	ttl    time.Duration
}

// New connects to Redis. It returns (nil, nil) when no address is configured
// so callers fall back to the in-process locker.
func New(ctx context.Context, cfg Config) (*Locker, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newLocker(rdb, cfg.TTL), nil
}

func newLocker(c client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{client: c, ttl: ttl}
}

func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, application.ErrRunInProgress
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, stopped)

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			close(stop)
			<-stopped
			err = l.client.Eval(ctx, releaseScript, []string{redisKey}, token).Err()
			if err != nil && !errors.Is(err, redis.Nil) {
				err = fmt.Errorf("release run lock: %w", err)
			} else {
				err = nil
			}
		})
		return err
	}, nil
}

func (l *Locker) keepAlive(key, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		held, err := l.client.Eval(ctx, refreshScript, []string{key}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			slog.Warn("run lock refresh failed", "key", key, "err", err)
		case held == 0:
			slog.Warn("run lock lost", "key", key)
			return
		}
	}
}

func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Locker) Close() error {
	return l.client.Close()
}
