package telemetry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	newton "github.com/monkeyman192/NMS-Newton"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubPublish(t *testing.T) {
	h := NewHub(0, nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)

	h.Publish(newton.Snapshot{Frame: 12, Running: true, Nearest: 3, Bodies: []newton.BodySnapshot{
		{Index: 3, Class: "moon", Parent: 1, Period: "2.00 minutes"},
	}})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got newton.Snapshot
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Frame != 12 || !got.Running || got.Nearest != 3 || len(got.Bodies) != 1 || got.Bodies[0].Class != "moon" {
		t.Fatalf("unexpected snapshot %+v", got)
	}

	conn.Close()
	waitClients(t, h, 0)
}

func TestHubRateLimit(t *testing.T) {
	h := NewHub(time.Hour, nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)

	for i := uint64(1); i <= 5; i++ {
		h.Publish(newton.Snapshot{Frame: i})
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var got newton.Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Frame != 1 {
		t.Fatalf("expected the first snapshot, got frame %d", got.Frame)
	}
	// Everything else was dropped.
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("rate limit not applied")
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub(0, nil, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitClients(t, h, 1)
	h.Close()
	if h.Clients() != 0 {
		t.Fatal("clients kept after close")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after close")
	}
	// Publishing to a closed hub is harmless.
	h.Publish(newton.Snapshot{})
}

func TestHubOrigins(t *testing.T) {
	h := NewHub(0, []string{"http://localhost:3000"}, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()
	defer h.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	if _, resp, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("connection from a foreign origin accepted")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unexpected rejection: %v", err)
	}
	header.Set("Origin", "http://localhost:3000")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, h, 1)
	// Non browser clients send no origin.
	other := dial(t, srv)
	defer other.Close()
	waitClients(t, h, 2)
}
