package relaypool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"notecrumbs/internal/metrics"
	"notecrumbs/internal/types"
)

// Subscription is an active REQ on one relay connection.
type Subscription struct {
	ID        string
	EventChan chan types.Event
	EOSEChan  chan bool
	Done      chan struct{}
	closeOnce sync.Once
}

// Close is safe to call more than once and from more than one goroutine.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { close(s.Done) })
}

// RelayConn is one websocket connection multiplexing many subscriptions.
type RelayConn struct {
	conn          *websocket.Conn
	relayURL      string
	mu            sync.Mutex
	writeMu       sync.Mutex
	subscriptions map[string]*Subscription
	closed        bool
	lastActivity  time.Time
}

// Pool manages one pooled connection per relay URL, reused across
// concurrent fetches. Idle connections are reaped after 2 minutes.
type Pool struct {
	mu          sync.RWMutex
	connections map[string]*RelayConn
	dial        func(ctx context.Context, url string) (*websocket.Conn, error)
}

// New returns an empty pool and starts its idle-connection reaper.
func New() *Pool {
	p := &Pool{
		connections: make(map[string]*RelayConn),
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
	go p.cleanupLoop()
	return p
}

func (p *Pool) getOrCreateConn(ctx context.Context, relayURL string) (*RelayConn, error) {
	if !isRelayURLSafe(relayURL) {
		return nil, errors.New("relaypool: relay URL blocked: unsafe destination")
	}

	p.mu.RLock()
	rc := p.connections[relayURL]
	p.mu.RUnlock()
	if rc != nil && !rc.closed {
		return rc, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	rc = p.connections[relayURL]
	if rc != nil && !rc.closed {
		return rc, nil
	}

	conn, err := p.dial(ctx, relayURL)
	if err != nil {
		return nil, err
	}
	rc = &RelayConn{
		conn:          conn,
		relayURL:      relayURL,
		subscriptions: make(map[string]*Subscription),
		lastActivity:  time.Now(),
	}
	p.connections[relayURL] = rc
	metrics.RelayConnectionsActive.Add(1)
	go rc.readLoop()
	return rc, nil
}

// Subscribe opens a REQ on relayURL and returns the Subscription that
// receives matching events and the EOSE signal.
func (p *Pool) Subscribe(ctx context.Context, relayURL, subID string, filter map[string]interface{}) (*Subscription, error) {
	rc, err := p.getOrCreateConn(ctx, relayURL)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ID:        subID,
		EventChan: make(chan types.Event, 100),
		EOSEChan:  make(chan bool, 1),
		Done:      make(chan struct{}),
	}

	rc.mu.Lock()
	if rc.closed {
		rc.mu.Unlock()
		return nil, errors.New("relaypool: connection closed")
	}
	rc.subscriptions[subID] = sub
	rc.mu.Unlock()

	req := []interface{}{"REQ", subID, filter}
	rc.writeMu.Lock()
	err = rc.conn.WriteJSON(req)
	rc.writeMu.Unlock()
	if err != nil {
		rc.mu.Lock()
		delete(rc.subscriptions, subID)
		rc.mu.Unlock()
		rc.markClosed()
		return nil, err
	}

	rc.mu.Lock()
	rc.lastActivity = time.Now()
	rc.mu.Unlock()
	metrics.RelaySubscribesTotal.Add(1)
	return sub, nil
}

// Unsubscribe sends CLOSE (best effort) and releases the subscription.
func (p *Pool) Unsubscribe(relayURL string, sub *Subscription) {
	if sub == nil {
		return
	}
	p.mu.RLock()
	rc := p.connections[relayURL]
	p.mu.RUnlock()
	if rc == nil {
		sub.Close()
		return
	}

	rc.mu.Lock()
	_, exists := rc.subscriptions[sub.ID]
	shouldClose := !rc.closed && exists
	if exists {
		delete(rc.subscriptions, sub.ID)
	}
	rc.mu.Unlock()

	if shouldClose {
		rc.writeMu.Lock()
		rc.conn.WriteJSON([]interface{}{"CLOSE", sub.ID})
		rc.writeMu.Unlock()
	}
	sub.Close()
}

func (rc *RelayConn) readLoop() {
	defer rc.markClosed()
	for {
		var msg []interface{}
		if err := rc.conn.ReadJSON(&msg); err != nil {
			rc.mu.Lock()
			closed := rc.closed
			rc.mu.Unlock()
			if !closed {
				slog.Debug("relaypool: read error", "relay", rc.relayURL, "error", err)
			}
			return
		}

		rc.mu.Lock()
		rc.lastActivity = time.Now()
		rc.mu.Unlock()

		if len(msg) < 2 {
			continue
		}
		msgType, ok := msg[0].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "EVENT":
			if len(msg) < 3 {
				continue
			}
			subID, ok := msg[1].(string)
			if !ok {
				continue
			}
			evt, ok := parseEventFromInterface(msg[2])
			if !ok {
				continue
			}
			rc.mu.Lock()
			sub := rc.subscriptions[subID]
			rc.mu.Unlock()
			if sub != nil {
				select {
				case sub.EventChan <- evt:
				case <-sub.Done:
				default:
				}
			}
		case "EOSE":
			if len(msg) < 2 {
				continue
			}
			subID, ok := msg[1].(string)
			if !ok {
				continue
			}
			rc.mu.Lock()
			sub := rc.subscriptions[subID]
			rc.mu.Unlock()
			if sub != nil {
				select {
				case sub.EOSEChan <- true:
				default:
				}
			}
		case "CLOSED":
			if len(msg) >= 2 {
				subID, _ := msg[1].(string)
				rc.mu.Lock()
				sub := rc.subscriptions[subID]
				delete(rc.subscriptions, subID)
				rc.mu.Unlock()
				if sub != nil {
					sub.Close()
				}
			}
		case "NOTICE":
			if len(msg) >= 2 {
				notice, _ := msg[1].(string)
				slog.Debug("relaypool: NOTICE", "relay", rc.relayURL, "notice", notice)
			}
		}
	}
}

func (rc *RelayConn) markClosed() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	metrics.RelayConnectionsActive.Add(-1)
	rc.conn.Close()
	for _, sub := range rc.subscriptions {
		sub.Close()
	}
	rc.subscriptions = make(map[string]*Subscription)
}

// Close tears down every pooled connection. Safe to call once at shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, rc := range p.connections {
		rc.markClosed()
		delete(p.connections, url)
	}
}

// ConnectionCount returns the number of currently pooled relay connections,
// used by the health endpoint (GET /health).
func (p *Pool) ConnectionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		p.cleanup()
	}
}

func (p *Pool) cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for url, rc := range p.connections {
		rc.mu.Lock()
		idle := len(rc.subscriptions) == 0 && now.Sub(rc.lastActivity) > 2*time.Minute
		closed := rc.closed
		rc.mu.Unlock()
		if closed || idle {
			if !closed {
				rc.markClosed()
			}
			delete(p.connections, url)
		}
	}
}

// parseEventFromInterface converts a raw JSON-decoded EVENT payload to a
// types.Event without a JSON re-encode/decode round trip. It does not check
// the signature; that happens at ingest (internal/store.EventStore.Ingest).
func parseEventFromInterface(data interface{}) (types.Event, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return types.Event{}, false
	}
	var evt types.Event
	if id, ok := m["id"].(string); ok {
		evt.ID = id
	}
	if pk, ok := m["pubkey"].(string); ok {
		evt.PubKey = pk
	}
	if ca, ok := m["created_at"].(float64); ok {
		evt.CreatedAt = int64(ca)
	}
	if kind, ok := m["kind"].(float64); ok {
		evt.Kind = int(kind)
	}
	if content, ok := m["content"].(string); ok {
		evt.Content = content
	}
	if sig, ok := m["sig"].(string); ok {
		evt.Sig = sig
	}
	if tags, ok := m["tags"].([]interface{}); ok {
		evt.Tags = make([][]string, 0, len(tags))
		for _, tag := range tags {
			tagArr, ok := tag.([]interface{})
			if !ok {
				continue
			}
			strTag := make([]string, 0, len(tagArr))
			for _, elem := range tagArr {
				if s, ok := elem.(string); ok {
					strTag = append(strTag, s)
				}
			}
			evt.Tags = append(evt.Tags, strTag)
		}
	}
	if evt.ID == "" {
		return types.Event{}, false
	}
	return evt, true
}
