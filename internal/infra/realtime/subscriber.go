// Package realtime consumes the Supabase realtime change feed over a
// websocket (Phoenix channel protocol). Subscribers get row-change events
// for one table + filter; the board controller uses them to reconcile its
// in-memory order list with what other sessions committed.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pocketshop/vendor-bff-go/internal/domain"
	"github.com/pocketshop/vendor-bff-go/internal/infra/resilience"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscriber dials the realtime endpoint and fans decoded change events
// into per-subscription channels.
type Subscriber struct {
	wsURL     string
	apiKey    string
	heartbeat time.Duration
	cfg       resilience.Config
	logger    *zap.Logger
}

// NewSubscriber creates a realtime subscriber. baseURL is the project URL
// (https://...); the websocket endpoint is derived from it.
func NewSubscriber(baseURL, apiKey string, heartbeat time.Duration, cfg resilience.Config, logger *zap.Logger) *Subscriber {
	ws := strings.Replace(strings.TrimRight(baseURL, "/"), "https://", "wss://", 1)
	ws = strings.Replace(ws, "http://", "ws://", 1)
	return &Subscriber{
		wsURL:     fmt.Sprintf("%s/realtime/v1/websocket?apikey=%s&vsn=1.0.0", ws, apiKey),
		apiKey:    apiKey,
		heartbeat: heartbeat,
		cfg:       cfg,
		logger:    logger,
	}
}

// phoenix message envelope.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload is the postgres_changes payload shape.
type changePayload struct {
	Data struct {
		Type      string          `json:"type"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// Subscribe opens a channel of change events for table rows matching filter
// (PostgREST filter syntax, e.g. "vendor_id=eq.<id>"). The returned channel
// closes when ctx is cancelled. Connection drops are retried with backoff;
// events lost during a reconnect are recovered by the caller's next full
// fetch, not replayed here.
func (s *Subscriber) Subscribe(ctx context.Context, table, filter string) (<-chan domain.ChangeEvent, error) {
	out := make(chan domain.ChangeEvent, 64)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}

			err := s.run(ctx, table, filter, out)
			if err == nil || ctx.Err() != nil {
				return
			}

			s.logger.Warn("realtime: connection lost, reconnecting",
				zap.String("table", table),
				zap.Error(err),
			)

			// Backoff between reconnect attempts.
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.InitialBackoff * 10):
			}
		}
	}()

	return out, nil
}

// run maintains one websocket connection until it fails or ctx ends.
func (s *Subscriber) run(ctx context.Context, table, filter string, out chan<- domain.ChangeEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()

	topic := fmt.Sprintf("realtime:public:%s", table)

	join := map[string]any{
		"topic": topic,
		"event": "phx_join",
		"ref":   "1",
		"payload": map[string]any{
			"config": map[string]any{
				"postgres_changes": []map[string]any{
					{"event": "*", "schema": "public", "table": table, "filter": filter},
				},
			},
		},
	}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("join topic: %w", err)
	}

	s.logger.Info("realtime: subscribed",
		zap.String("table", table),
		zap.String("filter", filter),
	)

	// Heartbeat keeps the Phoenix channel alive.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close() // unblocks ReadMessage
				return
			case <-ticker.C:
				hb := map[string]any{"topic": "phoenix", "event": "heartbeat", "payload": map[string]any{}, "ref": ""}
				if err := conn.WriteJSON(hb); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var msg phxMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("realtime: undecodable frame", zap.Error(err))
			continue
		}
		if msg.Event != "postgres_changes" || msg.Topic != topic {
			continue
		}

		event, ok := decodeChange(msg.Payload)
		if !ok {
			continue
		}

		select {
		case out <- event:
		case <-ctx.Done():
			return nil
		}
	}
}

func decodeChange(payload json.RawMessage) (domain.ChangeEvent, bool) {
	var cp changePayload
	if err := json.Unmarshal(payload, &cp); err != nil {
		return domain.ChangeEvent{}, false
	}

	event := domain.ChangeEvent{Type: domain.ChangeEventType(cp.Data.Type)}
	switch event.Type {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		return domain.ChangeEvent{}, false
	}

	if len(cp.Data.Record) > 0 {
		var row domain.Order
		if err := json.Unmarshal(cp.Data.Record, &row); err == nil {
			event.New = &row
		}
	}
	if len(cp.Data.OldRecord) > 0 {
		var row domain.Order
		if err := json.Unmarshal(cp.Data.OldRecord, &row); err == nil {
			event.Old = &row
		}
	}

	if event.New == nil && event.Old == nil {
		return domain.ChangeEvent{}, false
	}
	return event, true
}
