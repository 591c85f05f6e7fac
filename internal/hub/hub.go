package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"crimson-casino/internal/metrics"
	"crimson-casino/internal/store"
)

type client struct {
	conn    *websocket.Conn
	send    chan []byte
	tableID string
}

// Hub fans round and bet events out to websocket observers. Delivery is
// try-send: a client whose buffer is full gets dropped rather than letting it
// stall the table. A short replay ring per table catches subscribers up past
// the events they missed while connecting.
type Hub struct {
	store    store.Store
	upgrader websocket.Upgrader
	window   int

	mu      sync.Mutex
	clients map[*client]bool
	replay  map[string]*ring

	relay Publisher
}

func NewHub(st store.Store, replayWindow int) *Hub {
	if replayWindow <= 0 {
		replayWindow = 64
	}
	return &Hub{
		store:    st,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		window:   replayWindow,
		clients:  map[*client]bool{},
		replay:   map[string]*ring{},
	}
}

// SetRelay attaches a secondary publisher that mirrors locally-originated
// events to other instances.
func (h *Hub) SetRelay(r Publisher) {
	h.relay = r
}

// Publish delivers an event to local observers and, when one is attached, to
// the cross-instance relay. Events that arrived through the relay carry an
// origin and are not echoed back out.
func (h *Hub) Publish(ev Event) {
	h.deliver(ev)
	if h.relay != nil && ev.Origin == "" {
		h.relay.Publish(ev)
	}
}

// Ingest delivers a relayed event from another instance to local observers.
func (h *Hub) Ingest(ev Event) {
	h.deliver(ev)
}

func (h *Hub) deliver(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Msg("marshal event")
		return
	}

	h.mu.Lock()
	r, ok := h.replay[ev.TableID]
	if !ok {
		r = newRing(h.window)
		h.replay[ev.TableID] = r
	}
	r.add(msg)

	var dropped []*client
	for c := range h.clients {
		if c.tableID != "" && c.tableID != ev.TableID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			dropped = append(dropped, c)
		}
	}
	for _, c := range dropped {
		delete(h.clients, c)
		metrics.HubClients.Dec()
		metrics.HubDropped.Inc()
	}
	h.mu.Unlock()

	for _, c := range dropped {
		log.Warn().Str("table_id", c.tableID).Msg("dropping slow observer")
		safeClose(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

type subscribeMessage struct {
	Type    string `json:"type"`
	TableID string `json:"table_id"`
}

// HandleWS upgrades the connection and waits for a subscribe message naming
// the table (empty means all tables). The client then receives the current
// round snapshot, the replay buffer and the live stream.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	subscribed := false
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if subscribed {
			continue
		}
		var sub subscribeMessage
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != "subscribe" {
			continue
		}
		c.tableID = sub.TableID
		h.register(ctx, c)
		subscribed = true
	}
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (h *Hub) register(ctx context.Context, c *client) {
	var backlog [][]byte
	h.mu.Lock()
	if c.tableID != "" {
		if r, ok := h.replay[c.tableID]; ok {
			backlog = r.list()
		}
	}
	h.clients[c] = true
	metrics.HubClients.Inc()
	h.mu.Unlock()

	if snap := h.snapshot(ctx, c.tableID); snap != nil {
		safeSend(c.send, snap)
	}
	for _, msg := range backlog {
		safeSend(c.send, msg)
	}
}

// snapshot gives a fresh subscriber the table's current round so it does not
// have to wait for the next transition to learn the phase. The read runs
// under the connection's request context so a stalled store cannot pin the
// subscribe past the connection's lifetime.
func (h *Hub) snapshot(ctx context.Context, tableID string) []byte {
	if tableID == "" {
		return nil
	}
	round, err := h.store.CurrentRound(ctx, tableID)
	if err != nil {
		return nil
	}
	msg, err := json.Marshal(RoundEvent(EventRoundUpdate, round))
	if err != nil {
		return nil
	}
	return msg
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		metrics.HubClients.Dec()
	}
	h.mu.Unlock()
	safeClose(c.send)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}

// ring is a fixed-size buffer of the most recent marshaled events of a table,
// oldest first on read.
type ring struct {
	buf  [][]byte
	next int
	full bool
}

func newRing(n int) *ring {
	return &ring{buf: make([][]byte, n)}
}

func (r *ring) add(msg []byte) {
	r.buf[r.next] = msg
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) list() [][]byte {
	if !r.full {
		return append([][]byte(nil), r.buf[:r.next]...)
	}
	out := make([][]byte, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
