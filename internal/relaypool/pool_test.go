package relaypool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"notecrumbs/internal/types"
)

// newMockRelay starts a websocket server that replies to one REQ with a
// single EVENT (the given id) followed by EOSE, then waits for CLOSE.
func newMockRelay(t *testing.T, eventID string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg []interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if len(msg) < 2 {
			return
		}
		subID, _ := msg[1].(string)

		evt := map[string]interface{}{
			"id":         eventID,
			"pubkey":     strings.Repeat("a", 64),
			"created_at": float64(1000),
			"kind":       float64(1),
			"tags":       []interface{}{},
			"content":    "hello",
			"sig":        strings.Repeat("b", 128),
		}
		conn.WriteJSON([]interface{}{"EVENT", subID, evt})
		conn.WriteJSON([]interface{}{"EOSE", subID})

		// keep reading until the client closes or sends CLOSE
		for {
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
		}
	}))
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamEventsCollectsAndDedupes(t *testing.T) {
	srv := newMockRelay(t, strings.Repeat("1", 64))
	defer srv.Close()

	pool := New()
	events, allEOSE := pool.StreamEvents(context.Background(), []string{wsURL(srv)}, types.Filter{Kinds: []int{1}, Limit: 10}, 2*time.Second)

	if !allEOSE {
		t.Fatalf("expected all relays to reach EOSE")
	}
	if len(events) != 1 || events[0].ID != strings.Repeat("1", 64) {
		t.Fatalf("got %+v", events)
	}
}

func TestStreamEventsWithNoRelaysReturnsEmpty(t *testing.T) {
	pool := New()
	events, allEOSE := pool.StreamEvents(context.Background(), nil, types.Filter{Kinds: []int{1}}, 50*time.Millisecond)
	if len(events) != 0 {
		t.Fatalf("expected no events, got %+v", events)
	}
	if !allEOSE {
		t.Fatalf("zero relays should trivially all-EOSE")
	}
}
