package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans CaseEvents out across processes via Redis pub/sub. Local
// subscribers are served by an embedded MemoryBus fed from the forwarder
// goroutine, so in-process and cross-process delivery share one path.
type RedisBus struct {
	log     *zap.Logger
	rdb     *goredis.Client
	channel string
	local   *MemoryBus
	cancel  context.CancelFunc
}

func NewRedisBus(addr, channel string, log *zap.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if channel == "" {
		channel = "psyeval.casos"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisBus{
		log:     log,
		rdb:     rdb,
		channel: channel,
		local:   NewMemoryBus(),
		cancel:  cancel,
	}
	go bus.forward(ctx)
	return bus, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev CaseEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal case event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish case event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(casoID uuid.UUID, fn Handler) func() {
	return b.local.Subscribe(casoID, fn)
}

func (b *RedisBus) Close() error {
	b.cancel()
	_ = b.local.Close()
	return b.rdb.Close()
}

// forward pumps the Redis subscription into the local bus until Close.
func (b *RedisBus) forward(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev CaseEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("Dropping malformed case event", zap.Error(err))
				continue
			}
			_ = b.local.Publish(ctx, ev)
		}
	}
}
