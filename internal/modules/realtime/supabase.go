// README: Supabase Realtime (Phoenix channels over websocket) change-feed source.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"myride/internal/logging"
)

const (
	phxJoin      = "phx_join"
	phxLeave     = "phx_leave"
	phxReply     = "phx_reply"
	phxError     = "phx_error"
	phxHeartbeat = "heartbeat"
	pgChanges    = "postgres_changes"
)

type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref,omitempty"`
}

type pgChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinPayload struct {
	Config struct {
		Broadcast struct {
			Self bool `json:"self"`
		} `json:"broadcast"`
		Presence struct {
			Key string `json:"key"`
		} `json:"presence"`
		PostgresChanges []pgChangeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

// pgChangeData is the wire form of a postgres_changes payload.
type pgChangeData struct {
	Schema    string    `json:"schema"`
	Table     string    `json:"table"`
	Type      EventType `json:"type"`
	Record    Row       `json:"record"`
	OldRecord Row       `json:"old_record"`
	CommitAt  string    `json:"commit_timestamp"`
}

func (d pgChangeData) event() ChangeEvent {
	ev := ChangeEvent{
		Schema: d.Schema,
		Table:  d.Table,
		Type:   d.Type,
		New:    d.Record,
		Old:    d.OldRecord,
	}
	// the timestamp is informational; an unparsable one is left zero
	if at, err := time.Parse(time.RFC3339Nano, d.CommitAt); err == nil {
		ev.CommitAt = at
	}
	return ev
}

type SupabaseOptions struct {
	URL       string
	APIKey    string
	Schema    string
	Heartbeat time.Duration
	// Backoff is the delay before reconnecting after the socket drops.
	Backoff time.Duration
	Dialer  *websocket.Dialer
	Logger  *slog.Logger
}

// SupabaseFeed subscribes to postgres_changes UPDATE events. Each
// subscription owns one socket and reconnects until closed.
type SupabaseFeed struct {
	endpoint string
	opts     SupabaseOptions
	logger   *slog.Logger
}

func NewSupabaseFeed(opts SupabaseOptions) (*SupabaseFeed, error) {
	endpoint, err := realtimeEndpoint(opts.URL, opts.APIKey)
	if err != nil {
		return nil, err
	}
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &SupabaseFeed{endpoint: endpoint, opts: opts, logger: logging.OrDefault(opts.Logger)}, nil
}

// realtimeEndpoint turns a project URL into its realtime websocket URL.
func realtimeEndpoint(project, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(project, "/"))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid supabase url %q", project)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if !strings.HasSuffix(u.Path, "/websocket") {
		u.Path += "/realtime/v1/websocket"
	}
	q := u.Query()
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *SupabaseFeed) Subscribe(ctx context.Context, scope Scope, h Handler) (Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s := &supabaseSub{
		feed:    f,
		scope:   scope,
		topic:   "realtime:" + scope.Channel(),
		handler: h,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if err := s.join(conn); err != nil {
		cancel()
		conn.Close()
		return nil, err
	}
	go s.run(runCtx, conn)
	return s, nil
}

func (f *SupabaseFeed) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := f.opts.Dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase realtime dial: %w", err)
	}
	return conn, nil
}

type supabaseSub struct {
	feed    *SupabaseFeed
	scope   Scope
	topic   string
	handler Handler
	cancel  context.CancelFunc
	done    chan struct{}

	wmu  sync.Mutex
	conn *websocket.Conn
	ref  atomic.Int64

	closeOnce sync.Once
}

func (s *supabaseSub) nextRef() *string {
	r := strconv.FormatInt(s.ref.Add(1), 10)
	return &r
}

func (s *supabaseSub) send(conn *websocket.Conn, topic, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ref := s.nextRef()
	msg := phxMessage{Topic: topic, Event: event, Payload: raw, Ref: ref}
	if event == phxJoin {
		msg.JoinRef = ref
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

func (s *supabaseSub) join(conn *websocket.Conn) error {
	var p joinPayload
	p.AccessToken = s.feed.opts.APIKey
	p.Config.PostgresChanges = []pgChangeFilter{{
		Event:  string(EventUpdate),
		Schema: s.feed.opts.Schema,
		Table:  s.scope.Table,
		Filter: s.scope.Filter(),
	}}
	s.wmu.Lock()
	s.conn = conn
	s.wmu.Unlock()
	return s.send(conn, s.topic, phxJoin, p)
}

func (s *supabaseSub) run(ctx context.Context, conn *websocket.Conn) {
	defer close(s.done)
	for {
		err := s.serve(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.feed.logger.Warn("supabase realtime connection lost", "topic", s.topic, "error", err)
		if conn = s.redial(ctx); conn == nil {
			return
		}
	}
}

// redial retries with the configured backoff until it has a joined socket or
// ctx ends.
func (s *supabaseSub) redial(ctx context.Context) *websocket.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.feed.opts.Backoff):
		}
		conn, err := s.feed.connect(ctx)
		if err == nil {
			if err = s.join(conn); err == nil {
				return conn
			}
			conn.Close()
		}
		s.feed.logger.Warn("supabase realtime reconnect failed", "topic", s.topic, "error", err)
	}
}

// serve reads until the socket fails or ctx ends, heartbeating meanwhile.
func (s *supabaseSub) serve(ctx context.Context, conn *websocket.Conn) error {
	hbDone := make(chan struct{})
	defer close(hbDone)
	go func() {
		t := time.NewTicker(s.feed.opts.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-hbDone:
				return
			case <-t.C:
				if err := s.send(conn, "phoenix", phxHeartbeat, struct{}{}); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		var msg phxMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Topic != s.topic {
			continue
		}
		switch msg.Event {
		case pgChanges:
			var p struct {
				Data pgChangeData `json:"data"`
			}
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				s.feed.logger.Warn("undecodable postgres_changes payload", "topic", s.topic, "error", err)
				continue
			}
			s.handler(p.Data.event())
		case phxReply:
			var p struct {
				Status   string          `json:"status"`
				Response json.RawMessage `json:"response"`
			}
			if err := json.Unmarshal(msg.Payload, &p); err == nil && p.Status != "ok" {
				return fmt.Errorf("channel reply %s: %s", p.Status, p.Response)
			}
		case phxError:
			return errors.New("channel error")
		}
	}
}

func (s *supabaseSub) Close() error {
	s.closeOnce.Do(func() {
		s.wmu.Lock()
		conn := s.conn
		s.wmu.Unlock()
		if conn != nil {
			_ = s.send(conn, s.topic, phxLeave, struct{}{})
		}
		s.cancel()
		<-s.done
	})
	return nil
}
