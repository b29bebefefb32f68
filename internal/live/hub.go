package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/identity"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub serves GET /live: one websocket per signed-in buyer tab, fed from the
// buyer's Redis channel.
type Hub struct {
	Redis    *redis.Client
	Upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]string
}

func NewHub(rdb *redis.Client, checkOrigin func(*http.Request) bool) *Hub {
	return &Hub{
		Redis:    rdb,
		Upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  map[*websocket.Conn]string{},
	}
}

func (h *Hub) register(c *websocket.Conn, buyerID string) {
	h.mu.Lock()
	h.clients[c] = buyerID
	h.mu.Unlock()
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		_ = c.Close()
	}
	h.mu.Unlock()
}

// Clients reports how many sockets are open.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every open socket.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		_ = c.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	sub, err := redisx.SubscribeBuyer(r.Context(), h.Redis, u.ID)
	if err != nil {
		logx.WithContext(r.Context()).Errorw("live subscribe failed", logx.Field("err", err.Error()))
		http.Error(w, "live feed unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.register(conn, u.ID)
	defer h.unregister(conn)

	// the reader only watches for pongs and close frames
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	msgs := sub.Channel()
	for {
		select {
		case <-closed:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
