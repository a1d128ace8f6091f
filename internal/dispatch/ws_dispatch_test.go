package dispatch

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/skillbook/internal/models"
)

func TestNotifyWithoutSession(t *testing.T) {
	r := NewWSRegistry()
	err := r.Notify("sess1", models.BookingEvent{SubmissionID: "sub1", State: models.StateSuccess})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
}

func TestRemoveDropsSession(t *testing.T) {
	r := NewWSRegistry()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		r.Add("sess1", conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	// Add runs in the server goroutine after the handshake completes
	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := r.Notify("sess1", models.BookingEvent{SubmissionID: "sub1"}); err == nil {
			break
		} else if time.Now().After(deadline) {
			t.Fatalf("notify while registered: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.Remove("sess1")
	if err := r.Notify("sess1", models.BookingEvent{SubmissionID: "sub1"}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err after remove = %v, want ErrNoSession", err)
	}
}
