// README: Change-feed source reading JSON change events from a kafka topic.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"myride/internal/logging"
)

type KafkaOptions struct {
	Brokers []string
	Topic   string
	// GroupID prefixes the consumer group of every subscription; each scope
	// gets its own group so every subscriber sees every event.
	GroupID string
	Logger  *slog.Logger
}

// KafkaFeed reads a topic carrying every table change and filters it client
// side by scope.
type KafkaFeed struct {
	opts   KafkaOptions
	logger *slog.Logger
}

func NewKafkaFeed(opts KafkaOptions) *KafkaFeed {
	if opts.GroupID == "" {
		opts.GroupID = "myride"
	}
	return &KafkaFeed{opts: opts, logger: logging.OrDefault(opts.Logger)}
}

func (f *KafkaFeed) newReader(scope Scope) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     f.opts.Brokers,
		Topic:       f.opts.Topic,
		GroupID:     f.opts.GroupID + "-" + scope.Channel(),
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		StartOffset: kafka.LastOffset,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})
}

func (f *KafkaFeed) Subscribe(ctx context.Context, scope Scope, h Handler) (Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	r := f.newReader(scope)
	runCtx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSub{reader: r, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		f.consume(runCtx, r, scope, h)
	}()
	return sub, nil
}

func (f *KafkaFeed) consume(ctx context.Context, r *kafka.Reader, scope Scope, h Handler) {
	logger := f.logger.With("topic", f.opts.Topic, "scope", scope.Channel())
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn("kafka fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if ev, ok := decodeKafkaEvent(msg.Value); ok && scope.Matches(ev) {
			h(ev)
		} else if !ok {
			logger.Warn("undecodable change event", "offset", msg.Offset, "partition", msg.Partition)
		}
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Warn("kafka commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func decodeKafkaEvent(value []byte) (ChangeEvent, bool) {
	var ev ChangeEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return ChangeEvent{}, false
	}
	return ev, true
}

type kafkaSub struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *kafkaSub) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.err = s.reader.Close()
	})
	return s.err
}
