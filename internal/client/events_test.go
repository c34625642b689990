package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	newBlockMessage = `{"jsonrpc":"2.0","id":1,"result":{"query":"tm.event='NewBlock'","data":{"type":"tendermint/event/NewBlock","value":{
		"block":{"header":{"height":"12"}},
		"result_begin_block":{"events":[{"type":"rewards","attributes":[{"key":"bond_reward","value":"1"}]}]},
		"result_end_block":{"events":[{"type":"swap","attributes":[{"key":"pool","value":"BNB.BNB"}]},{"type":"SWAP","attributes":[]}]}
	}}}}`
	txMessage = `{"jsonrpc":"2.0","id":2,"result":{"query":"tm.event='Tx'","data":{"type":"tendermint/event/Tx","value":{
		"TxResult":{"height":"13","result":{"events":[{"type":"add","attributes":[{"key":"pool","value":"BNB.BNB"}]}]}}
	}}}}`
	ackMessage = `{"jsonrpc":"2.0","id":1,"result":{}}`
)

func TestParseMessage(t *testing.T) {
	cases := []struct {
		name      string
		message   string
		wantTypes []string
		wantErr   string
	}{
		{name: "subscription ack", message: ackMessage},
		{name: "new block", message: newBlockMessage, wantTypes: []string{"rewards", "swap", "SWAP"}},
		{name: "tx", message: txMessage, wantTypes: []string{"add"}},
		{name: "unknown type", message: `{"result":{"data":{"type":"tendermint/event/Vote","value":{}}}}`},
		{name: "malformed", message: `{`, wantErr: "failed to unmarshal message"},
		{name: "rpc error", message: `{"error":{"code":-32603,"message":"Internal error","data":"max subscriptions"}}`, wantErr: "subscription error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events, err := parseMessage([]byte(tc.message))
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			var types []string
			for _, e := range events {
				types = append(types, e.Type)
			}
			assert.Equal(t, tc.wantTypes, types)
		})
	}
}

func TestParseMessageHeightsAndAttributes(t *testing.T) {
	events, err := parseMessage([]byte(newBlockMessage))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(12), events[1].Height)
	assert.Equal(t, "BNB.BNB", events[1].Attributes["pool"])
}

func TestEventStreamRun(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for i := 0; i < len(subscribeQueries); i++ {
			var req struct {
				Method string `json:"method"`
				Params struct {
					Query string `json:"query"`
				} `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			assert.Equal(t, "subscribe", req.Method)
			subscribed <- req.Params.Query
		}
		for _, msg := range []string{ackMessage, newBlockMessage, txMessage} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	log := &EventLog{}
	stream := NewEventStream("ws"+strings.TrimPrefix(srv.URL, "http"), log)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx) }()

	assert.Eventually(t, func() bool { return log.Len() == 4 }, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, subscribeQueries, []string{<-subscribed, <-subscribed})

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("event stream did not stop after cancellation")
	}
}

func TestEventStreamServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < len(subscribeQueries); i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"))
	}))
	defer srv.Close()

	stream := NewEventStream("ws"+strings.TrimPrefix(srv.URL, "http"), &EventLog{})
	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(context.Background()) }()

	select {
	case err := <-errCh:
		assert.ErrorContains(t, err, "websocket closed by server")
		assert.True(t, websocket.IsCloseError(errors.Unwrap(err), websocket.CloseNormalClosure))
	case <-time.After(5 * time.Second):
		t.Fatal("event stream kept running after the server closed the connection")
	}
}

func TestEventStreamCancelledDuringDial(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	stream := NewEventStream("ws"+strings.TrimPrefix(srv.URL, "http"), &EventLog{})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.NoError(t, stream.Run(ctx))
}

func TestEventStreamDialError(t *testing.T) {
	stream := NewEventStream("ws://127.0.0.1:1/websocket", &EventLog{})
	err := stream.Run(context.Background())
	assert.ErrorContains(t, err, "failed to dial websocket")
}

func TestEventLogSnapshot(t *testing.T) {
	log := &EventLog{}
	events, err := parseMessage([]byte(txMessage))
	require.NoError(t, err)
	log.Append(events...)

	snap := log.Events()
	snap[0].Type = "mutated"
	assert.Equal(t, "add", log.Events()[0].Type)
}
