package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manifest-network/benchie/internal/models"
)

var subscribeQueries = []string{
	"tm.event='NewBlock'",
	"tm.event='Tx'",
}

// EventLog is an append-only, concurrency-safe record of observed events.
type EventLog struct {
	mu     sync.RWMutex
	events []models.Event
}

// Append adds events to the log.
func (l *EventLog) Append(events ...models.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, events...)
}

// Events returns a snapshot of every event observed so far.
func (l *EventLog) Events() []models.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of events observed so far.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// EventStream subscribes to the target network's websocket and records block and tx events into an EventLog.
type EventStream struct {
	url    string
	log    *EventLog
	dialer websocket.Dialer
}

type abciAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type abciEvent struct {
	Type       string          `json:"type"`
	Attributes []abciAttribute `json:"attributes"`
}

type eventsHolder struct {
	Events []abciEvent `json:"events"`
}

type newBlockValue struct {
	Block struct {
		Header struct {
			Height int64 `json:"height,string"`
		} `json:"header"`
	} `json:"block"`
	ResultBeginBlock    eventsHolder `json:"result_begin_block"`
	ResultEndBlock      eventsHolder `json:"result_end_block"`
	ResultFinalizeBlock eventsHolder `json:"result_finalize_block"`
}

type txValue struct {
	TxResult struct {
		Height int64        `json:"height,string"`
		Result eventsHolder `json:"result"`
	} `json:"TxResult"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

type rpcMessage struct {
	Result *struct {
		Query string `json:"query"`
		Data  struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"data"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// NewEventStream returns a stream reading from wsURL into log.
func NewEventStream(wsURL string, log *EventLog) *EventStream {
	return &EventStream{
		url: wsURL,
		log: log,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Run connects, subscribes and records events until ctx is cancelled. A cancelled context is not an
// error. The server closing the connection while ctx is live is.
func (s *EventStream) Run(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dial websocket %s: %w", s.url, err)
	}
	defer conn.Close()

	for i, query := range subscribeQueries {
		req := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "subscribe",
			"id":      i + 1,
			"params": map[string]interface{}{
				"query": query,
			},
		}
		if err := conn.WriteJSON(req); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to subscribe to %s: %w", query, err)
		}
	}
	slog.Info("Subscribed to target network events", "url", s.url)

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("websocket closed by server: %w", err)
			}
			return fmt.Errorf("failed to read from websocket: %w", err)
		}

		events, err := parseMessage(message)
		if err != nil {
			var rpcErr *subscriptionError
			if errors.As(err, &rpcErr) {
				return err
			}
			slog.Warn("Failed to parse websocket message", "error", err)
			continue
		}
		if len(events) > 0 {
			s.log.Append(events...)
			slog.Debug("Recorded events", "count", len(events), "total", s.log.Len())
		}
	}
}

type subscriptionError struct {
	rpcError
}

func (e *subscriptionError) Error() string {
	return fmt.Sprintf("subscription error %d: %s %s", e.Code, e.Message, e.Data)
}

// parseMessage extracts events from a CometBFT subscription message.
func parseMessage(message []byte) ([]models.Event, error) {
	var msg rpcMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	if msg.Error != nil {
		return nil, &subscriptionError{*msg.Error}
	}
	if msg.Result == nil || len(msg.Result.Data.Value) == 0 {
		// Subscription acknowledgements carry an empty result.
		return nil, nil
	}

	switch msg.Result.Data.Type {
	case "tendermint/event/NewBlock":
		var v newBlockValue
		if err := json.Unmarshal(msg.Result.Data.Value, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block event: %w", err)
		}
		height := v.Block.Header.Height
		var out []models.Event
		out = appendEvents(out, height, v.ResultBeginBlock.Events)
		out = appendEvents(out, height, v.ResultEndBlock.Events)
		out = appendEvents(out, height, v.ResultFinalizeBlock.Events)
		return out, nil
	case "tendermint/event/Tx":
		var v txValue
		if err := json.Unmarshal(msg.Result.Data.Value, &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tx event: %w", err)
		}
		return appendEvents(nil, v.TxResult.Height, v.TxResult.Result.Events), nil
	default:
		return nil, nil
	}
}

func appendEvents(out []models.Event, height int64, events []abciEvent) []models.Event {
	for _, e := range events {
		attrs := make(map[string]string, len(e.Attributes))
		for _, a := range e.Attributes {
			attrs[a.Key] = a.Value
		}
		out = append(out, models.Event{Type: e.Type, Height: height, Attributes: attrs})
	}
	return out
}
