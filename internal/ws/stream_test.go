package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/exchange/ordercalc/internal/order"
	"github.com/gorilla/websocket"
)

type fakeFeed struct {
	mu       sync.Mutex
	ch       chan order.State
	canceled bool
}

func (f *fakeFeed) Subscribe(sessionID string) (<-chan order.State, func(), error) {
	if sessionID != "s-1" {
		return nil, nil, errors.New("session not found")
	}
	return f.ch, func() {
		f.mu.Lock()
		f.canceled = true
		f.mu.Unlock()
	}, nil
}

func newStreamServer(t *testing.T, feed Feed) (*Streamer, *httptest.Server) {
	t.Helper()
	streamer := NewStreamer(feed, &StreamConfig{PingInterval: time.Second}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/")
		if err := streamer.Serve(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return streamer, srv
}

func TestStreamerPushesState(t *testing.T) {
	feed := &fakeFeed{ch: make(chan order.State, 1)}
	streamer, srv := newStreamServer(t, feed)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/s-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	state := order.Defaults()
	state.Market = "ETH"
	feed.ch <- state

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.SessionID != "s-1" || msg.Data.Market != "ETH" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if streamer.ConnCount() != 1 {
		t.Fatalf("expected one tracked connection, got %d", streamer.ConnCount())
	}

	// 会话删除后服务端发送关闭帧
	close(feed.ch)
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		feed.mu.Lock()
		canceled := feed.canceled
		feed.mu.Unlock()
		if canceled && streamer.ConnCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected subscription canceled and connection removed")
}

func TestStreamerUnknownSession(t *testing.T) {
	_, srv := newStreamServer(t, &fakeFeed{ch: make(chan order.State)})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestAllowOrigin(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if !allowOrigin(r, nil) {
		t.Fatal("expected requests without origin to pass")
	}
	r.Header.Set("Origin", "https://app.example")
	if allowOrigin(r, []string{"https://other.example"}) {
		t.Fatal("expected foreign origin rejected")
	}
	if !allowOrigin(r, []string{"https://app.example"}) || !allowOrigin(r, []string{"*"}) {
		t.Fatal("expected allowed origin")
	}
}
