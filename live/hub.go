package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	RoomTournaments = "tournaments"
	RoomAdmin       = "admin"
)

func TournamentRoom(id int) string { return "tournament_" + strconv.Itoa(id) }

func UserRoom(id int) string { return "user_" + strconv.Itoa(id) }

// Event - одно изменение, разосланное подписчикам комнаты.
// Seq растет монотонно в пределах хаба: клиент отбрасывает события со старым Seq.
type Event struct {
	Seq     uint64      `json:"seq"`
	Type    string      `json:"type"`
	Room    string      `json:"room"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Client - одно WebSocket-соединение, подписанное на одну или несколько комнат.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	rooms  []string
	closed bool
	mu     sync.Mutex
}

func NewClient(hub *Hub, conn *websocket.Conn, rooms ...string) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: rooms,
	}
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	subs       map[string]map[chan Event]struct{}
	mu         sync.RWMutex
	seq        atomic.Uint64
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		subs:       make(map[string]map[chan Event]struct{}),
		logger:     logger,
	}
}

// Run обслуживает регистрацию клиентов до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			for _, room := range client.rooms {
				if _, ok := h.rooms[room]; !ok {
					h.rooms[room] = make(map[*Client]bool)
				}
				h.rooms[room][client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("live client registered", slog.Any("rooms", client.rooms))

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	for _, room := range client.rooms {
		members, ok := h.rooms[room]
		if !ok {
			continue
		}
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.mu.Lock()
	if !client.closed {
		close(client.send)
		client.closed = true
	}
	client.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.rooms {
		for client := range members {
			h.removeClient(client)
		}
	}
	for room, chans := range h.subs {
		for ch := range chans {
			close(ch)
		}
		delete(h.subs, room)
	}
}

// Register подключает клиента к его комнатам и запускает насосы чтения/записи.
func (h *Hub) Register(client *Client) {
	h.register <- client
	go client.writePump()
	go client.readPump()
}

// Publish рассылает событие всем подписчикам комнаты. Медленные подписчики пропускают событие.
func (h *Hub) Publish(room, eventType string, payload interface{}) {
	event := Event{
		Seq:     h.seq.Add(1),
		Type:    eventType,
		Room:    room,
		Payload: payload,
		At:      time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[room] {
		select {
		case ch <- event:
		default:
			h.logger.Warn("live subscriber is slow, event dropped", slog.String("room", room), slog.Uint64("seq", event.Seq))
		}
	}

	members, ok := h.rooms[room]
	if !ok || len(members) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal live event", slog.String("room", room), slog.Any("error", err))
		return
	}
	for client := range members {
		client.enqueue(data)
	}
}

// SendTo отправляет событие одному клиенту (например, начальный снимок после подключения).
func (h *Hub) SendTo(client *Client, eventType string, payload interface{}) {
	event := Event{Seq: h.seq.Add(1), Type: eventType, Payload: payload, At: time.Now().UTC()}
	if len(client.rooms) > 0 {
		event.Room = client.rooms[0]
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal live snapshot", slog.Any("error", err))
		return
	}
	client.enqueue(data)
}

// Subscribe возвращает канал событий комнаты для внутренних потребителей.
// cancel отписывает и закрывает канал.
func (h *Hub) Subscribe(room string, buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if _, ok := h.subs[room]; !ok {
		h.subs[room] = make(map[chan Event]struct{})
	}
	h.subs[room][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if chans, ok := h.subs[room]; ok {
				if _, ok := chans[ch]; ok {
					delete(chans, ch)
					close(ch)
				}
				if len(chans) == 0 {
					delete(h.subs, room)
				}
			}
		})
	}
	return ch, cancel
}

func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("live client send buffer full, event dropped", slog.Any("rooms", c.rooms))
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// Входящие сообщения не используются, читаем только ради control-фреймов.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("live client closed unexpectedly", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
