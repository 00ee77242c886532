// Package redisbus fans job status transitions out over Redis pub/sub.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

// Event is one persisted status transition.
type Event struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	OwnerUserID string    `json:"owner_user_id"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe blocks until ctx is done, calling onEvent for every message.
	Subscribe(ctx context.Context, onEvent func(Event)) error
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type bus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func New(log *logger.Logger, cfg Config) (Bus, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.Channel == "" {
		cfg.Channel = "job_status"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &bus{
		log:     log.With("service", "RedisStatusBus"),
		rdb:     rdb,
		channel: cfg.Channel,
	}, nil
}

func (b *bus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *bus) Subscribe(ctx context.Context, onEvent func(Event)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				b.log.Warn("Dropping malformed status event", "error", err)
				continue
			}
			onEvent(ev)
		}
	}
}

func (b *bus) Close() error { return b.rdb.Close() }

type nopBus struct{}

// Nop is used when Redis is not configured.
func Nop() Bus { return nopBus{} }

func (nopBus) Publish(context.Context, Event) error { return nil }

func (nopBus) Subscribe(ctx context.Context, _ func(Event)) error {
	<-ctx.Done()
	return nil
}

func (nopBus) Close() error { return nil }
