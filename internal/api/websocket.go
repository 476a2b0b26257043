package api

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-relay/internal/job"
	"github.com/thereceipt/receipt-relay/pkg/printformat"
)

// WebSocket message types
const (
	EventPrint          = "print"
	EventJobUpdated     = "job_updated"
	EventPrinterAdded   = "printer_added"
	EventPrinterRemoved = "printer_removed"
	EventResponse       = "response"
	EventError          = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type wsClient struct {
	conn   *websocket.Conn
	send   chan any
	server *Server
}

type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan any, 256),
		server: s,
	}
	s.addClient(client)
	s.logger.Info("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go client.writePump()
	go client.readPump()
}

func (s *Server) addClient(c *wsClient) {
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
}

// removeClient unregisters c and closes its send channel, once
func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
	s.clientsMu.Unlock()
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
	s.clientsMu.Unlock()
}

func (s *Server) broadcast(event string, data any) {
	msg := outgoing{Event: event, Data: data}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
			// Client send buffer full, skip
		}
	}
}

// BroadcastJob sends a job_updated event for rec
func (s *Server) BroadcastJob(rec job.Record) {
	s.broadcast(EventJobUpdated, map[string]any{
		"id":         rec.ID,
		"kind":       rec.Kind,
		"state":      rec.State,
		"error":      rec.Error,
		"error_kind": rec.ErrorKind,
		"retries":    rec.Retries,
	})
}

// BroadcastPrinterAdded announces that the printer came back
func (s *Server) BroadcastPrinterAdded(name string) {
	s.broadcast(EventPrinterAdded, map[string]any{"name": name})
}

// BroadcastPrinterRemoved announces that the printer disappeared
func (s *Server) BroadcastPrinterRemoved(name string) {
	s.broadcast(EventPrinterRemoved, map[string]any{"name": name})
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.server.logger.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
		c.server.logger.Info("websocket client disconnected")
	}()

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

func (c *wsClient) handleMessage(msg *WSMessage) {
	switch msg.Event {
	case EventPrint:
		c.handlePrintEvent(msg.Data)
	default:
		c.sendError(fmt.Sprintf("unknown event: %s", msg.Event))
	}
}

// handlePrintEvent queues the print document carried in data
func (c *wsClient) handlePrintEvent(data json.RawMessage) {
	doc, err := printformat.Parse(data)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	j, err := doc.ToJob()
	if err != nil {
		c.sendError(err.Error())
		return
	}

	jobID := c.server.queue.Enqueue(j)
	c.reply(EventResponse, map[string]any{
		"success": true,
		"job_id":  jobID,
	})
}

func (c *wsClient) sendError(message string) {
	c.reply(EventError, map[string]any{"error": message})
}

// reply goes through the same registry lock as broadcasts so it never
// races with the channel being closed
func (c *wsClient) reply(event string, data any) {
	c.server.clientsMu.RLock()
	defer c.server.clientsMu.RUnlock()
	if _, ok := c.server.clients[c]; !ok {
		return
	}
	select {
	case c.send <- outgoing{Event: event, Data: data}:
	default:
	}
}
