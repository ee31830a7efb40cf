// Package ws pushes pipeline events to browsers over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// Connection timing. Pings go out well inside the pong deadline.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4096
	outboxSize     = 64
)

// Channels are the bus channels bridged to clients.
var Channels = []string{
	domain.ChannelDiscoveryMinted,
	domain.ChannelScanCompleted,
}

// envelope wraps every outgoing frame.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// control is the only inbound message: narrow or widen the channels a
// connection receives.
type control struct {
	Action   string   `json:"action"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}

// Config captures metadata reported to clients on connect and the origins
// allowed to upgrade.
type Config struct {
	Mode           string
	StartedAt      time.Time
	AllowedOrigins []string
}

// Hub fans bus events out to connected browsers. Bus subscriptions are made
// once in Run; connections arriving before that wait for it.
type Hub struct {
	bus       domain.EventBus
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	mode      string
	startedAt time.Time

	ready     chan struct{}
	readyOnce sync.Once

	mu    sync.Mutex
	peers map[*peer]struct{}
}

// NewHub creates a Hub bridging bus to WebSocket clients.
func NewHub(bus domain.EventBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	started := cfg.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger:    logger.With(slog.String("component", "ws")),
		mode:      mode,
		startedAt: started,
		ready:     make(chan struct{}),
		peers:     make(map[*peer]struct{}),
	}
}

// originChecker admits same-origin and non-browser clients, then any
// configured origin.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.ContainsFunc(allowed, func(o string) bool { return strings.EqualFold(o, origin) })
	}
}

// Run subscribes to every bridged channel, relays until ctx is cancelled,
// then disconnects all peers.
func (h *Hub) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, ch := range Channels {
		events, err := h.bus.Subscribe(ctx, ch)
		if err != nil {
			h.logger.Error("ws: subscribe failed",
				slog.String("channel", ch),
				slog.String("error", err.Error()),
			)
			continue
		}
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			h.relay(ctx, channel, events)
		}(ch)
	}
	h.readyOnce.Do(func() { close(h.ready) })

	<-ctx.Done()
	wg.Wait()

	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[*peer]struct{})
	h.mu.Unlock()
	for p := range peers {
		p.close()
	}
	return ctx.Err()
}

func (h *Hub) relay(ctx context.Context, channel string, events <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				return
			}
			frame, err := encode(channel, data)
			if err != nil {
				h.logger.Warn("ws: dropping malformed event",
					slog.String("channel", channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			h.broadcast(channel, frame)
		}
	}
}

// broadcast queues frame on every peer listening to channel. A peer whose
// outbox is full misses the frame.
func (h *Hub) broadcast(channel string, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		if p.wants(channel) && !p.offer(frame) {
			h.logger.Warn("ws: outbox full, frame dropped", slog.String("channel", channel))
		}
	}
}

func (h *Hub) add(p *peer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p] = struct{}{}
	return len(h.peers)
}

func (h *Hub) remove(p *peer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p)
	return len(h.peers)
}

// encode builds an envelope frame. Non-JSON payloads are sent as a string.
func encode(channel string, payload []byte) ([]byte, error) {
	if !json.Valid(payload) {
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return nil, err
		}
		payload = quoted
	}
	return json.Marshal(envelope{Type: channel, Payload: payload})
}

// HandleWS upgrades the request and subscribes the connection to every
// bridged channel. The first frame is a hub_status snapshot.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.ready:
	case <-r.Context().Done():
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	p := newPeer(conn)
	if status, err := h.status(); err == nil {
		p.offer(status)
	}
	h.logger.Info("ws: client connected", slog.Int("clients", h.add(p)))

	go p.writeLoop()
	go func() {
		p.readLoop(h.logger)
		p.close()
		h.logger.Info("ws: client disconnected", slog.Int("clients", h.remove(p)))
	}()
}

func (h *Hub) status() ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"mode":           h.mode,
		"uptime_seconds": max(int64(time.Since(h.startedAt).Seconds()), 0),
		"channels":       Channels,
	})
	if err != nil {
		return nil, err
	}
	return encode("hub_status", payload)
}

// peer is one browser connection. The outbox is drained by writeLoop; done
// is closed exactly once by close.
type peer struct {
	conn   *websocket.Conn
	outbox chan []byte
	done   chan struct{}
	once   sync.Once

	mu    sync.RWMutex
	muted map[string]bool
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
		muted:  make(map[string]bool),
	}
}

func (p *peer) close() {
	p.once.Do(func() { close(p.done) })
}

func (p *peer) offer(frame []byte) bool {
	select {
	case <-p.done:
		return true
	case p.outbox <- frame:
		return true
	default:
		return false
	}
}

func (p *peer) wants(channel string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.muted[channel]
}

func (p *peer) apply(c control) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range c.Channels {
		switch c.Action {
		case "unsubscribe":
			p.muted[ch] = true
		case "subscribe":
			delete(p.muted, ch)
		}
	}
}

// readLoop handles control messages and pongs until the socket fails.
func (p *peer) readLoop(logger *slog.Logger) {
	p.conn.SetReadLimit(maxInboundSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var c control
		if json.Unmarshal(msg, &c) == nil {
			p.apply(c)
		}
	}
}

// writeLoop is the only writer on the socket. It exits, closing the socket,
// when the peer is closed or a write fails.
func (p *peer) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()
	for {
		var (
			kind int
			data []byte
		)
		select {
		case <-p.done:
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case data = <-p.outbox:
			kind = websocket.TextMessage
		case <-ticker.C:
			kind = websocket.PingMessage
		}
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(kind, data); err != nil {
			p.close()
			return
		}
	}
}
