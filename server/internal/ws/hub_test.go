package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riskwatch/riskwatch/server/internal/dashboard"
	wsHub "github.com/riskwatch/riskwatch/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

// fakeStats is a StatsSource whose value can change between ticks.
type fakeStats struct {
	mu sync.Mutex
	st dashboard.Stats
}

func (f *fakeStats) Stats(context.Context) (dashboard.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st, nil
}

func (f *fakeStats) set(st dashboard.Stats) {
	f.mu.Lock()
	f.st = st
	f.mu.Unlock()
}

func startHub(t *testing.T, src wsHub.StatsSource) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(src, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
	return f
}

// readUntil skips frames until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	for i := 0; i < 200; i++ {
		if f := readFrame(t, conn); f.Event == event {
			return f
		}
	}
	t.Fatalf("no %q frame received", event)
	return frame{}
}

func waitCount(t *testing.T, hub *wsHub.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("Count: got %d, want %d", hub.Count(), want)
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateStats(t *testing.T) {
	src := &fakeStats{st: dashboard.Stats{TotalEquipment: 3, CriticalCount: 1}}
	wsURL, _, _ := startHub(t, src)

	conn := dial(t, wsURL)
	f := readFrame(t, conn)
	if f.Event != wsHub.EventStats {
		t.Fatalf("event: got %q, want stats", f.Event)
	}
	var st dashboard.Stats
	if err := json.Unmarshal(f.Data, &st); err != nil {
		t.Fatalf("unmarshal stats: %v", err)
	}
	if st.TotalEquipment != 3 || st.CriticalCount != 1 {
		t.Errorf("stats: got %+v", st)
	}
}

func TestHub_TickBroadcastsFreshStats(t *testing.T) {
	src := &fakeStats{}
	wsURL, _, _ := startHub(t, src)

	conn := dial(t, wsURL)
	readFrame(t, conn)

	src.set(dashboard.Stats{TotalEquipment: 7})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f := readUntil(t, conn, wsHub.EventStats)
		var st dashboard.Stats
		json.Unmarshal(f.Data, &st) //nolint:errcheck
		if st.TotalEquipment == 7 {
			return
		}
	}
	t.Fatal("updated stats were never broadcast")
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, &fakeStats{})

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readFrame(t, conns[i]) // initial stats
	}
	waitCount(t, hub, 3)

	payload := map[string]string{"equipment_id": "PUMP-1", "risk_level": "CRITICAL"}
	if err := hub.Publish(context.Background(), "alerts", payload); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for i, conn := range conns {
		f := readUntil(t, conn, "alerts")
		var got map[string]string
		if err := json.Unmarshal(f.Data, &got); err != nil {
			t.Fatalf("client %d: unmarshal: %v", i, err)
		}
		if got["equipment_id"] != "PUMP-1" || got["risk_level"] != "CRITICAL" {
			t.Errorf("client %d: got %v", i, got)
		}
	}
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := wsHub.New(&fakeStats{}, testInterval)
	if err := hub.Publish(context.Background(), "alerts", struct{}{}); err != nil {
		t.Errorf("Publish with no clients: %v", err)
	}
}

func TestHub_PublishUnencodable(t *testing.T) {
	hub := wsHub.New(&fakeStats{}, testInterval)
	if err := hub.Publish(context.Background(), "alerts", make(chan int)); err == nil {
		t.Error("Publish of a channel: expected marshal error")
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, &fakeStats{})

	conn := dial(t, wsURL)
	readFrame(t, conn)
	for i := 0; i < 2; i++ {
		c := dial(t, wsURL)
		readFrame(t, c)
	}
	waitCount(t, hub, 3)

	conn.Close()
	waitCount(t, hub, 2)
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, &fakeStats{})

	conn := dial(t, wsURL)
	readFrame(t, conn)
	waitCount(t, hub, 1)

	cancel()
	waitCount(t, hub, 0)
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(&fakeStats{}, testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
