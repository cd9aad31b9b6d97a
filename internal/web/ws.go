package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/hoist/internal/logic"
	"github.com/sweeney/hoist/internal/status"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsMaxMessage = 512
)

var errScheduleOverWS = errors.New("schedule commands need a value; use POST /command")

// wsClient is one websocket subscriber. Status frames are queued on send
// and written by writePump; text frames received are command names.
type wsClient struct {
	id     int64
	conn   *websocket.Conn
	server *Server
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := &wsClient{
		id:     atomic.AddInt64(&s.nextID, 1),
		conn:   conn,
		server: s,
		send:   make(chan []byte, 8),
		done:   make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[c.id] = c
	s.clientsMu.Unlock()
	s.log.Debug().Int64("client", c.id).Msg("websocket connected")

	// First frame goes out immediately so the page does not wait a push interval.
	c.queue(status.FormatJSON(s.tracker.Snapshot()))

	go c.writePump()
	c.readPump()
}

// Broadcast pushes the current status to every websocket client.
func (s *Server) Broadcast() {
	frame := status.FormatJSON(s.tracker.Snapshot())

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		c.queue(frame)
	}
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.ClientCount() > 0 {
				s.Broadcast()
			}
		case <-s.done:
			return
		}
	}
}

func (s *Server) removeClient(c *wsClient) {
	s.clientsMu.Lock()
	delete(s.clients, c.id)
	s.clientsMu.Unlock()
	s.log.Debug().Int64("client", c.id).Msg("websocket disconnected")
}

// queue drops the frame if the client is behind; the next push supersedes it.
func (c *wsClient) queue(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.close()
	}()

	c.conn.SetReadLimit(wsMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.log.Warn().Err(err).Int64("client", c.id).Msg("websocket read")
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *wsClient) handleMessage(msg []byte) {
	ct, err := logic.ParseCommandType(strings.TrimSpace(string(msg)))
	if err == nil && (logic.Command{Type: ct}).IsSchedule() {
		err = errScheduleOverWS
	}
	if err == nil {
		err = c.server.submit(logic.Command{Type: ct, Source: SourceWeb})
	}
	if err != nil {
		c.server.log.Warn().Err(err).Int64("client", c.id).Msg("websocket command rejected")
		frame, _ := json.Marshal(commandResponse{Error: err.Error()})
		c.queue(frame)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
