package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdash/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConnection records writes and blocks reads until closed.
type fakeConnection struct {
	mu     sync.Mutex
	writes []fakeFrame
	closed chan struct{}
	once   sync.Once
}

type fakeFrame struct {
	messageType int
	data        []byte
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{closed: make(chan struct{})}
}

func (f *fakeConnection) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return errors.New("connection closed")
	default:
	}
	f.writes = append(f.writes, fakeFrame{messageType: messageType, data: data})
	return nil
}

func (f *fakeConnection) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseGoingAway}
}

func (f *fakeConnection) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConnection) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConnection) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConnection) SetReadLimit(int64)                {}
func (f *fakeConnection) SetPongHandler(func(string) error) {}

func (f *fakeConnection) frames() []fakeFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeFrame(nil), f.writes...)
}

type envelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp string                 `json:"timestamp"`
	TraceID   string                 `json:"trace_id"`
}

func decode(t *testing.T, raw []byte) envelope {
	t.Helper()
	var msg envelope
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger(), nil)
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHubRegisterSendsConnectionMessage(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConnection(), "127.0.0.1", "trace-1", config.WebSocketConfig{}, testLogger())

	hub.Register(client)

	msg := decode(t, receive(t, client))
	assert.Equal(t, TypeConnection, msg.Type)
	assert.Equal(t, "connected", msg.Data["status"])
	assert.Equal(t, client.ID(), msg.Data["client_id"])
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubBroadcast(t *testing.T) {
	hub := startHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = NewClient(hub, newFakeConnection(), "", "", config.WebSocketConfig{}, testLogger())
		hub.Register(clients[i])
		receive(t, clients[i])
	}

	hub.Broadcast("statistics:written", map[string]interface{}{
		"project":  "Site A",
		"workbook": "budget.xlsx",
	})

	for _, c := range clients {
		msg := decode(t, receive(t, c))
		assert.Equal(t, "statistics:written", msg.Type)
		assert.Equal(t, "Site A", msg.Data["project"])
		assert.NotEmpty(t, msg.Timestamp)
		assert.Empty(t, msg.TraceID)
	}

	assert.Eventually(t, func() bool {
		return hub.Stats().MessagesSent == 3
	}, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastWithTrace(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConnection(), "", "", config.WebSocketConfig{}, testLogger())
	hub.Register(client)
	receive(t, client)

	hub.BroadcastWithTrace("report:generated", map[string]interface{}{"name": "r.xlsx"}, "abc")

	msg := decode(t, receive(t, client))
	assert.Equal(t, "abc", msg.TraceID)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, newFakeConnection(), "", "", config.WebSocketConfig{}, testLogger())
	hub.Register(client)
	receive(t, client)

	hub.Unregister(client)

	select {
	case _, ok := <-client.send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, hub.ClientCount())

	// A second unregister is harmless.
	hub.Unregister(client)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := NewClient(hub, newFakeConnection(), "", "", config.WebSocketConfig{}, testLogger())
	hub.Register(slow)

	// The connection message is left unread, so the buffer fills up.
	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast("tick", i)
		time.Sleep(time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Positive(t, hub.Stats().MessagesDropped)
}

func TestHubStop(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	hub.Start()

	client := NewClient(hub, newFakeConnection(), "", "", config.WebSocketConfig{}, testLogger())
	hub.Register(client)
	receive(t, client)

	hub.Stop()
	hub.Stop()

	assert.Equal(t, 0, hub.ClientCount())
	assert.NotPanics(t, func() {
		hub.Broadcast("after", nil)
		hub.Unregister(client)
	})

	late := NewClient(hub, newFakeConnection(), "", "", config.WebSocketConfig{}, testLogger())
	hub.Register(late)
	_, ok := <-late.send
	assert.False(t, ok)
}

func TestNewClientKeepAlive(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.WebSocketConfig
		wantPong time.Duration
		wantPing time.Duration
	}{
		{"defaults", config.WebSocketConfig{}, 60 * time.Second, 54 * time.Second},
		{"configured", config.WebSocketConfig{PingPeriod: 30 * time.Second, PongWait: 60 * time.Second}, 60 * time.Second, 30 * time.Second},
		{"ping not shorter than pong", config.WebSocketConfig{PingPeriod: 20 * time.Second, PongWait: 10 * time.Second}, 10 * time.Second, 9 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(NewHub(testLogger(), nil), newFakeConnection(), "", "", tt.cfg, testLogger())
			assert.Equal(t, tt.wantPong, c.pongWait)
			assert.Equal(t, tt.wantPing, c.pingPeriod)
			assert.NotEmpty(t, c.traceID)
		})
	}
}

func TestWritePump(t *testing.T) {
	hub := NewHub(testLogger(), nil)
	conn := newFakeConnection()
	client := NewClient(hub, conn, "", "", config.WebSocketConfig{}, testLogger())

	done := make(chan struct{})
	go func() {
		client.WritePump()
		close(done)
	}()

	client.send <- []byte(`{"type":"a"}`)
	client.send <- []byte(`{"type":"b"}`)
	close(client.send)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WritePump did not exit")
	}

	frames := conn.frames()
	require.Len(t, frames, 3)
	assert.Equal(t, websocket.TextMessage, frames[0].messageType)
	assert.JSONEq(t, `{"type":"a"}`, string(frames[0].data))
	assert.Equal(t, websocket.TextMessage, frames[1].messageType)
	assert.Equal(t, websocket.CloseMessage, frames[2].messageType)
}

func TestReadPumpUnregistersOnClose(t *testing.T) {
	hub := startHub(t)
	conn := newFakeConnection()
	client := NewClient(hub, conn, "", "", config.WebSocketConfig{}, testLogger())
	client.Serve()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestEndToEnd(t *testing.T) {
	hub := startHub(t)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, r.RemoteAddr, "", config.WebSocketConfig{}, testLogger()).Serve()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, TypeConnection, decode(t, raw).Type)

	hub.Broadcast("report:generated", map[string]interface{}{"name": "report.xlsx"})

	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	msg := decode(t, raw)
	assert.Equal(t, "report:generated", msg.Type)
	assert.Equal(t, "report.xlsx", msg.Data["name"])
}
