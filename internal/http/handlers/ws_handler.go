package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pixelgenesis/backend/internal/eth"
	"github.com/pixelgenesis/backend/internal/events"
	"github.com/pixelgenesis/backend/internal/middleware"
)

// WSHub доставляет события идентичности подключённым кошелькам.
// Событие уходит только соединениям адреса из Event.Address.
type WSHub struct {
	sessions    middleware.SessionParser
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string]map[*wsClient]struct{}
}

const wsWriteTimeout = 5 * time.Second

// wsClient - соединение с собственным mutex на запись: websocket.Conn допускает
// только одного писателя, а события приходят из разных горутин.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

func NewWSHub(sessions middleware.SessionParser, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		sessions:    sessions,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.Channel, func(event events.Event) {
		if event.Address == "" {
			return
		}
		h.SendToAddress(event.Address, event)
	})
}

func (h *WSHub) SendToAddress(address string, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.connections[eth.NormalizeAddress(address)] {
		if err := client.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("type", event.Type), zap.Error(err))
		}
	}
}

// Connections returns the number of live sockets for an address.
func (h *WSHub) Connections(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[eth.NormalizeAddress(address)])
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	defer conn.Close()
	client := &wsClient{conn: conn}

	claims, err := h.sessions.ParseSession(conn.Query("token"))
	if err != nil {
		_ = client.writeJSON(fiber.Map{"ok": false, "error": "invalid or missing token"})
		return
	}

	address := eth.NormalizeAddress(claims.Address)
	if err := client.writeJSON(fiber.Map{"ok": true, "address": address}); err != nil {
		return
	}

	h.register(address, client)
	defer h.unregister(address, client)

	h.log.Debug("ws connected", zap.String("address", address))

	// клиент ничего не присылает, чтение нужно только чтобы заметить закрытие
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) register(address string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[address] == nil {
		h.connections[address] = make(map[*wsClient]struct{})
	}
	h.connections[address][client] = struct{}{}
}

func (h *WSHub) unregister(address string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.connections[address], client)
	if len(h.connections[address]) == 0 {
		delete(h.connections, address)
	}
}
