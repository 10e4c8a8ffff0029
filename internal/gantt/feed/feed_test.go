package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type countingObserver struct {
	mu       sync.Mutex
	clients  int
	messages map[string]int
}

func (o *countingObserver) ObserveFeedClients(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clients = n
}

func (o *countingObserver) ObserveFeedMessage(typ, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.messages == nil {
		o.messages = make(map[string]int)
	}
	o.messages[typ+"/"+outcome]++
}

func (o *countingObserver) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.messages[key]
}

// startHub runs a hub behind an httptest server and returns its ws:// URL.
func startHub(t *testing.T, cfg Config) (*Hub, string) {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	hub := NewHub(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestHello(t *testing.T) {
	hub, url := startHub(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 1; i <= 3; i++ {
		conn := dial(t, ctx, url)
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeHello {
			t.Fatalf("first message type = %s, want %s", msg.Type, MessageTypeHello)
		}
		var hello HelloData
		if err := json.Unmarshal(msg.Data, &hello); err != nil {
			t.Fatal(err)
		}
		if hello.Clients != i {
			t.Errorf("hello clients = %d, want %d", hello.Clients, i)
		}
	}

	if got := hub.ClientCount(); got != 3 {
		t.Errorf("ClientCount = %d, want 3", got)
	}
}

func TestNotifySync(t *testing.T) {
	obs := &countingObserver{}
	hub, url := startHub(t, Config{Observer: obs})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dial(t, ctx, url)
	b := dial(t, ctx, url)
	readMessage(t, ctx, a)
	readMessage(t, ctx, b)

	reqID := int64(9)
	hub.NotifySync(gsync.ChangeSet{
		RequestID: &reqID,
		Revision:  4,
		Created:   []int64{11, 12},
		Removed:   []int64{3},
	})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeSync {
			t.Fatalf("type = %s, want %s", msg.Type, MessageTypeSync)
		}
		var got gsync.ChangeSet
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatal(err)
		}
		if got.Revision != 4 || *got.RequestID != 9 || len(got.Created) != 2 || got.Removed[0] != 3 {
			t.Errorf("unexpected change set %+v", got)
		}
		if msg.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	}

	if got := obs.count("sync/sent"); got != 2 {
		t.Errorf("sync/sent = %d, want 2", got)
	}
}

func TestNotifyReload(t *testing.T) {
	hub, url := startHub(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, url)
	readMessage(t, ctx, conn)

	hub.NotifyReload(40)

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeReload {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeReload)
	}
	var data ReloadData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Tasks != 40 {
		t.Errorf("tasks = %d, want 40", data.Tasks)
	}
}

func TestDisconnectRemovesClient(t *testing.T) {
	obs := &countingObserver{}
	hub, url := startHub(t, Config{Observer: obs})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	readMessage(t, ctx, conn)
	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(5 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client still registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	obs := &countingObserver{}
	// Not running, so nothing drains the queue.
	hub := NewHub(Config{Logger: quietLogger(), Observer: obs})
	defer hub.Close()

	for i := 0; i < broadcastBuffer+5; i++ {
		hub.NotifyReload(i)
	}
	if got := obs.count("reload/dropped"); got != 5 {
		t.Errorf("dropped = %d, want 5", got)
	}
}

func TestClosedHubRejectsClients(t *testing.T) {
	hub := NewHub(Config{Logger: quietLogger()})
	hub.Close()

	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestForeignOriginRejected(t *testing.T) {
	_, url := startHub(t, Config{OriginPatterns: []string{"localhost:5173"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err == nil {
		t.Fatal("expected dial from a foreign origin to fail")
	}

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
