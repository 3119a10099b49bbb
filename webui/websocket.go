package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BroadcasterConfig tunes WebSocket keep-alive and buffering.
type BroadcasterConfig struct {
	PingInterval         time.Duration
	PongWait             time.Duration
	WriteWait            time.Duration
	MaxMessageSize       int64
	BroadcastBufferSize  int
	ClientSendBufferSize int
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

// DefaultBroadcasterConfig returns the default configuration.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		PingInterval:         30 * time.Second,
		PongWait:             60 * time.Second,
		WriteWait:            10 * time.Second,
		MaxMessageSize:       512,
		BroadcastBufferSize:  256,
		ClientSendBufferSize: 64,
	}
}

type wsClient struct {
	conn       *websocket.Conn
	sessionID  string
	remoteAddr string
	send       chan []byte
}

// Broadcaster is the hub that fans progress events out to the WebSocket
// clients of the session they belong to. All client bookkeeping happens
// on the Run goroutine.
type Broadcaster struct {
	cfg      BroadcasterConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan WSMessage

	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
}

// NewBroadcaster returns a hub. Call Run to start it.
func NewBroadcaster(cfg BroadcasterConfig, logger *zap.Logger) *Broadcaster {
	def := DefaultBroadcasterConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.BroadcastBufferSize <= 0 {
		cfg.BroadcastBufferSize = def.BroadcastBufferSize
	}
	if cfg.ClientSendBufferSize <= 0 {
		cfg.ClientSendBufferSize = def.ClientSendBufferSize
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Broadcaster{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:     logger.With(zap.String("component", "websocket")),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan WSMessage, cfg.BroadcastBufferSize),
		clients:    make(map[*wsClient]struct{}),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and messages until ctx is done or Shutdown
// is called. Every client is disconnected on the way out.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer close(b.done)
	b.logger.Debug("broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return nil
		case <-b.quit:
			b.closeAll()
			return nil
		case c := <-b.register:
			b.mu.Lock()
			b.clients[c] = struct{}{}
			n := len(b.clients)
			b.mu.Unlock()
			b.logger.Debug("client connected",
				zap.String("session_id", c.sessionID),
				zap.String("remote_addr", c.remoteAddr),
				zap.Int("clients", n))
		case c := <-b.unregister:
			b.remove(c)
		case msg := <-b.broadcast:
			b.deliver(msg)
		}
	}
}

// Shutdown stops Run and waits for it, or for ctx.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.quitOnce.Do(func() { close(b.quit) })
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish queues msg for the clients of msg.SessionID. It never blocks;
// when the queue is full the message is dropped.
func (b *Broadcaster) Publish(msg WSMessage) {
	select {
	case b.broadcast <- msg:
	default:
		b.logger.Warn("broadcast buffer full, dropping message",
			zap.String("type", msg.Type),
			zap.String("session_id", msg.SessionID))
	}
}

// ClientCount is the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeSession upgrades the request and subscribes the connection to
// sessionID's events.
func (b *Broadcaster) ServeSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		b.logger.Debug("websocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	c := &wsClient{
		conn:       conn,
		sessionID:  sessionID,
		remoteAddr: conn.RemoteAddr().String(),
		send:       make(chan []byte, b.cfg.ClientSendBufferSize),
	}

	select {
	case b.register <- c:
	case <-b.done:
		conn.Close()
		return
	}

	go b.writePump(c)
	go b.readPump(c)
}

func (b *Broadcaster) remove(c *wsClient) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	n := len(b.clients)
	b.mu.Unlock()
	if ok {
		b.logger.Debug("client disconnected",
			zap.String("session_id", c.sessionID),
			zap.Int("clients", n))
	}
}

func (b *Broadcaster) deliver(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal websocket message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	var slow []*wsClient
	b.mu.RLock()
	for c := range b.clients {
		if c.sessionID != msg.SessionID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("client send buffer full, disconnecting", zap.String("remote_addr", c.remoteAddr))
		b.remove(c)
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	for c := range b.clients {
		close(c.send)
		delete(b.clients, c)
	}
	b.mu.Unlock()
	b.logger.Debug("all websocket clients disconnected")
}

// readPump discards client messages and keeps the read deadline moving
// with pongs. It unregisters the client when the connection drops.
func (b *Broadcaster) readPump(c *wsClient) {
	defer func() {
		select {
		case b.unregister <- c:
		case <-b.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(b.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug("unexpected websocket close", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on c.conn, so pings go through it too.
func (b *Broadcaster) writePump(c *wsClient) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				b.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
