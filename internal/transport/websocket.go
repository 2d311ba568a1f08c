// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 2 * time.Second
	maxControlSize = 4096
)

// HubConfig configures a WebSocketTransport.
type HubConfig struct {
	Addr       string   // Listen address, e.g. "127.0.0.1:8080".
	Path       string   // Upgrade path; "/ws" when empty.
	Encoding   Encoding // Default wire format; clients may pick ?encoding=.
	SendBuffer int      // Queued messages per client before dropping; 64 when zero.
}

// client is one connected browser page.
type client struct {
	id       uuid.UUID
	conn     *websocket.Conn
	encoding Encoding
	send     chan []byte
	done     chan struct{}
	dropped  atomic.Uint64
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Every Send is encoded once per encoding in use and queued to
// each client; a client that cannot keep up loses messages rather than
// slowing the others. Inbound control messages go to the Controller.
type WebSocketTransport struct {
	cfg        HubConfig
	upgrader   websocket.Upgrader
	controller Controller
	greeting   func() any

	ctx    context.Context
	cancel context.CancelFunc

	clientsMu sync.Mutex
	clients   map[uuid.UUID]*client
	closed    bool

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewWebSocketTransport creates a hub. ctl may be nil to ignore control
// messages; greeting, if set, is sent to each client as it connects.
func NewWebSocketTransport(cfg HubConfig, ctl Controller, greeting func() any) *WebSocketTransport {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketTransport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1 << 16,
			CheckOrigin: func(r *http.Request) bool {
				return true // The page may be served from anywhere during development.
			},
		},
		controller: ctl,
		greeting:   greeting,
		ctx:        ctx,
		cancel:     cancel,
		clients:    make(map[uuid.UUID]*client),
	}
}

// Handler returns the HTTP handler serving the upgrade path.
func (wst *WebSocketTransport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wst.cfg.Path, wst.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves in the background.
func (wst *WebSocketTransport) Start() error {
	ln, err := net.Listen("tcp", wst.cfg.Addr)
	if err != nil {
		return err
	}
	wst.listener = ln
	wst.server = &http.Server{
		Handler:           wst.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(1)
	go func() {
		defer wst.wg.Done()
		logger.Infof("websocket server listening on ws://%s%s (%s)", ln.Addr(), wst.cfg.Path, wst.cfg.Encoding)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server: %v", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (wst *WebSocketTransport) Addr() string {
	if wst.listener == nil {
		return wst.cfg.Addr
	}
	return wst.listener.Addr().String()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	enc := wst.cfg.Encoding
	if q := r.URL.Query().Get("encoding"); q != "" {
		var err error
		if enc, err = ParseEncoding(q); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxControlSize)

	c := &client{
		id:       uuid.New(),
		conn:     conn,
		encoding: enc,
		send:     make(chan []byte, wst.cfg.SendBuffer),
		done:     make(chan struct{}),
	}

	if wst.greeting != nil {
		msg, err := enc.Marshal(Envelope{Type: "layout", Data: wst.greeting()})
		if err != nil {
			logger.Errorf("encode greeting: %v", err)
		} else {
			c.send <- msg
		}
	}

	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		conn.Close()
		return
	}
	wst.clients[c.id] = c
	total := len(wst.clients)
	wst.wg.Add(2)
	wst.clientsMu.Unlock()
	logger.Infof("client %s connected (%s), total: %d", c.id, enc, total)

	go wst.writePump(c)
	go wst.readPump(c)
}

func messageType(e Encoding) int {
	if e == Msgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (wst *WebSocketTransport) writePump(c *client) {
	defer wst.wg.Done()
	defer wst.remove(c)
	mt := messageType(c.encoding)
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(mt, msg); err != nil {
				logger.Debugf("client %s write: %v", c.id, err)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (wst *WebSocketTransport) readPump(c *client) {
	defer wst.wg.Done()
	defer wst.remove(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if wst.controller == nil {
			continue
		}
		var ctl Control
		if err := c.encoding.Unmarshal(data, &ctl); err != nil {
			logger.Debugf("client %s sent undecodable control: %v", c.id, err)
			continue
		}
		if err := ctl.Apply(wst.ctx, wst.controller); err != nil {
			logger.Warnf("client %s control %q: %v", c.id, ctl.Type, err)
		}
	}
}

func (wst *WebSocketTransport) remove(c *client) {
	c.close()
	wst.clientsMu.Lock()
	_, ok := wst.clients[c.id]
	delete(wst.clients, c.id)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		logger.Infof("client %s disconnected (%d dropped), total: %d", c.id, c.dropped.Load(), total)
	}
}

// Send broadcasts data to all connected WebSocket clients. Clients whose
// queue is full drop the message.
func (wst *WebSocketTransport) Send(data any) error {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	if wst.closed {
		return errors.New("websocket transport closed")
	}

	var encoded [2][]byte
	for _, c := range wst.clients {
		msg := encoded[c.encoding]
		if msg == nil {
			var err error
			if msg, err = c.encoding.Marshal(data); err != nil {
				return err
			}
			encoded[c.encoding] = msg
		}
		select {
		case c.send <- msg:
		default:
			c.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Close disconnects every client and shuts down the server.
func (wst *WebSocketTransport) Close() error {
	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		return nil
	}
	wst.closed = true
	clients := make([]*client, 0, len(wst.clients))
	for _, c := range wst.clients {
		clients = append(clients, c)
	}
	wst.clientsMu.Unlock()

	logger.Infof("closing websocket server")
	wst.cancel()
	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
			time.Now().Add(writeWait))
		c.close()
	}

	var err error
	if wst.server != nil {
		err = wst.server.Close()
	}
	wst.wg.Wait()
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
