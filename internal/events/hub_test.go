package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/aj7-relay/internal/relay"
)

var _ relay.Emitter = (*Hub)(nil)

func TestHub_OrderAndPayload(t *testing.T) {
	hub := NewHub(16, nil)
	sub := hub.Subscribe()
	defer sub.Cancel()

	hub.Emit("stream-chunk-1", relay.ChunkPayload{Chunk: "ab"})
	hub.Emit("stream-chunk-1", relay.ChunkPayload{Chunk: "cd"})
	hub.Emit("stream-complete-1", relay.CompletePayload{Done: true})

	want := []Envelope{
		{Event: "stream-chunk-1", Payload: []byte(`{"chunk":"ab"}`)},
		{Event: "stream-chunk-1", Payload: []byte(`{"chunk":"cd"}`)},
		{Event: "stream-complete-1", Payload: []byte(`{"done":true}`)},
	}
	for i, w := range want {
		got := <-sub.C
		if got.Event != w.Event || string(got.Payload) != string(w.Payload) {
			t.Errorf("envelope[%d] = %s %s, want %s %s", i, got.Event, got.Payload, w.Event, w.Payload)
		}
	}
}

func TestHub_Filter(t *testing.T) {
	hub := NewHub(16, nil)
	sub := hub.Subscribe("stream-complete-a")
	defer sub.Cancel()

	hub.Emit("stream-chunk-a", relay.ChunkPayload{Chunk: "x"})
	hub.Emit("stream-complete-b", relay.CompletePayload{Done: true})
	hub.Emit("stream-complete-a", relay.CompletePayload{Done: true})

	got := <-sub.C
	if got.Event != "stream-complete-a" {
		t.Errorf("event = %s, want stream-complete-a", got.Event)
	}
	select {
	case extra := <-sub.C:
		t.Errorf("unexpected envelope %v", extra)
	default:
	}
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	hub := NewHub(2, nil)
	slow := hub.Subscribe()
	fast := hub.Subscribe()

	for _, c := range []string{"a", "b", "c"} {
		hub.Emit("stream-chunk-s", relay.ChunkPayload{Chunk: c})
		<-fast.C
	}

	if hub.Len() != 1 {
		t.Fatalf("subscribers = %d, want 1", hub.Len())
	}

	// the slow subscriber sees a prefix without gaps, then a closed channel
	var seen []string
	for env := range slow.C {
		seen = append(seen, string(env.Payload))
	}
	if strings.Join(seen, ",") != `{"chunk":"a"},{"chunk":"b"}` {
		t.Errorf("slow subscriber saw %v", seen)
	}
	fast.Cancel()
}

func TestHub_NoSubscribers(t *testing.T) {
	hub := NewHub(0, nil)
	if err := hub.Emit("stream-chunk-x", relay.ChunkPayload{Chunk: "lost"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
}

func TestHub_MarshalError(t *testing.T) {
	hub := NewHub(1, nil)
	if err := hub.Emit("bad", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestHub_CancelTwice(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe()
	sub.Cancel()
	sub.Cancel()
	hub.Close()
	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed")
	}
}

func TestHandler_Websocket(t *testing.T) {
	hub := NewHub(16, nil)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?event=stream-chunk-w&event=stream-complete-w"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	hub.Emit("stream-chunk-other", relay.ChunkPayload{Chunk: "skip"})
	hub.Emit("stream-chunk-w", relay.ChunkPayload{Chunk: "hi"})
	hub.Emit("stream-complete-w", relay.CompletePayload{Done: true})

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first, second Envelope
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.Event != "stream-chunk-w" || string(first.Payload) != `{"chunk":"hi"}` {
		t.Errorf("first = %s %s", first.Event, first.Payload)
	}
	if second.Event != "stream-complete-w" || string(second.Payload) != `{"done":true}` {
		t.Errorf("second = %s %s", second.Event, second.Payload)
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_EventRightAfterDial(t *testing.T) {
	hub := NewHub(16, nil)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?event=stream-complete-x"
	for i := 0; i < 50; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}

		hub.Emit("stream-complete-x", relay.CompletePayload{Done: true})

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			conn.Close()
			t.Fatalf("connection %d: event emitted after handshake was lost: %v", i, err)
		}
		if env.Event != "stream-complete-x" {
			t.Errorf("connection %d: event = %s", i, env.Event)
		}
		conn.Close()

		deadline := time.Now().Add(5 * time.Second)
		for hub.Len() != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("connection %d: subscriber not removed", i)
			}
			time.Sleep(time.Millisecond)
		}
	}
}

func TestHandler_FailedUpgradeUnsubscribes(t *testing.T) {
	hub := NewHub(16, nil)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?event=stream-chunk-x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if n := hub.Len(); n != 0 {
		t.Errorf("Len() = %d after failed upgrade, want 0", n)
	}
}
