// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024

	// Outbound messages buffered per client before output is dropped.
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message types for WebSocket communication
const (
	MsgTypeStart  = "START"
	MsgTypeOutput = "OUTPUT"
	MsgTypeExit   = "EXIT"
)

// Message represents a WebSocket message
type Message struct {
	Type     string `json:"type"`
	RunID    string `json:"runId,omitempty"`
	Line     string `json:"line,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`
	TimedOut bool   `json:"timedOut,omitempty"`
	Error    string `json:"error,omitempty"`
}

// wsClient is a middleman between the websocket connection and a run.
type wsClient struct {
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	mu     sync.Mutex
	closed bool

	logger *zap.Logger
}

// readPump discards inbound messages and returns when the peer goes away.
func (c *wsClient) readPump(cancel context.CancelFunc) {
	defer cancel()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps messages from the run to the websocket connection.
func (c *wsClient) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The run finished.
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
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

func (c *wsClient) sendJSON(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// Slow peer. Output stays in the run record.
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// lineWriter turns driver output into one OUTPUT message per line.
type lineWriter struct {
	c       *wsClient
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.pending[:i], "\r"))
		w.pending = w.pending[i+1:]
		w.c.sendJSON(Message{Type: MsgTypeOutput, Line: line})
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.pending) > 0 {
		w.c.sendJSON(Message{Type: MsgTypeOutput, Line: string(w.pending)})
		w.pending = nil
	}
}

// serveRunWS runs the driver and streams its output to a websocket peer.
// The run continues when the peer disconnects.
func (s *server) serveRunWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &wsClient{
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		logger: s.logger,
	}
	peerCtx, peerGone := context.WithCancel(context.Background())
	defer peerGone()
	written := make(chan struct{})
	go c.writePump(written)
	go c.readPump(peerGone)

	c.sendJSON(Message{Type: MsgTypeStart})
	lw := &lineWriter{c: c}
	rec := s.execute(context.WithoutCancel(r.Context()), "websocket", lw)
	lw.flush()

	code := rec.ExitCode
	c.sendJSON(Message{
		Type:     MsgTypeExit,
		RunID:    rec.ID,
		ExitCode: &code,
		TimedOut: rec.TimedOut,
		Error:    rec.Error,
	})
	c.close()

	select {
	case <-written:
	case <-peerCtx.Done():
	case <-time.After(writeWait):
	}
}
