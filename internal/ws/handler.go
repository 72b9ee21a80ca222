package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/playmatatu/billiards/internal/config"
	"github.com/playmatatu/billiards/internal/game"
	"github.com/playmatatu/billiards/internal/middleware"
	"github.com/playmatatu/billiards/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	commandTimeout = 5 * time.Second
)

// Origins are checked by middleware.WebSocketCORSCheck before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is one WebSocket connection watching a table.
type Client struct {
	id      string
	conn    *websocket.Conn
	hub     *Hub
	table   *session.Table
	tableID string
	send    chan []byte
	control bool // may shoot, rerack and place the cue ball
}

// Handler upgrades table WebSocket connections.
type Handler struct {
	hub      *Hub
	sessions *session.Manager
	cfg      *config.Config
}

func NewHandler(hub *Hub, sessions *session.Manager, cfg *config.Config) *Handler {
	return &Handler{hub: hub, sessions: sessions, cfg: cfg}
}

// HandleWebSocket serves GET /api/v1/tables/:id/ws. Without a valid ?token=
// the connection only watches.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	tableID := c.Param("id")
	table, err := h.sessions.Get(tableID)
	if errors.Is(err, session.ErrTableNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "table not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	control := false
	if token := c.Query("token"); token != "" {
		if err := middleware.VerifyTableToken(h.cfg, token, tableID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		control = true
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		hub:     h.hub,
		table:   table,
		tableID: tableID,
		send:    make(chan []byte, 256),
		control: control,
	}
	// Queue the current state before joining the room so it arrives first.
	if data, err := json.Marshal(table.Frame()); err == nil {
		client.send <- data
	}
	if !h.hub.join(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads messages until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] Unexpected close for client %s: %v", c.id, err)
			}
			return
		}

		msg, err := ParseMessage(message)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		c.handleMessage(msg)
	}
}

// writePump writes queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for client %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage runs one validated client message against the table.
func (c *Client) handleMessage(msg WSMessage) {
	if msg.Type != MsgGetState && !c.control {
		c.sendError("control token required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch msg.Type {
	case MsgShot:
		var data ShotData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid shot data")
			return
		}
		if err := c.table.Shoot(ctx, data.Shot()); err != nil {
			c.sendError(err.Error())
			return
		}
		c.hub.BroadcastToTable(c.tableID, gin.H{"type": "shot_taken", "shot": data})

	case MsgRerack:
		if err := c.table.Rerack(ctx); err != nil {
			c.sendError(err.Error())
		}

	case MsgPlaceCueBall:
		var data PlaceCueBallData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("Invalid placement data")
			return
		}
		if err := c.table.PlaceCueBall(ctx, game.NewVec2(data.X, data.Y)); err != nil {
			c.sendError(err.Error())
		}

	case MsgGetState:
		c.sendJSON(c.table.Frame())
	}
}

func (c *Client) sendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.rooms[c.tableID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[WS] Send buffer full for client %s, dropping message", c.id)
	}
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendJSON(gin.H{"type": "error", "message": message})
}
