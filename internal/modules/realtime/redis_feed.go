// README: Change-feed source over redis pub/sub, plus the matching publisher.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"myride/internal/logging"
)

// RedisFeed subscribes to one channel per scope. Events on the channel are
// JSON-encoded ChangeEvents.
type RedisFeed struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewRedisFeed(rdb *redis.Client, logger *slog.Logger) *RedisFeed {
	return &RedisFeed{rdb: rdb, logger: logging.OrDefault(logger)}
}

func (f *RedisFeed) Subscribe(ctx context.Context, scope Scope, h Handler) (Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	ps := f.rdb.Subscribe(ctx, scope.Channel())
	// Wait for the subscription to be confirmed so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", scope.Channel(), err)
	}
	sub := &redisSub{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Warn("undecodable change event", "channel", msg.Channel, "error", err)
				continue
			}
			if !scope.Matches(ev) {
				continue
			}
			h(ev)
		}
	}()
	return sub, nil
}

type redisSub struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSub) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}

// RedisPublisher publishes change events to the channel RedisFeed reads.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, scope Scope, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, scope.Channel(), data).Err()
}
