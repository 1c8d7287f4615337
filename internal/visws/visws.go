/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package visws implements the out-of-core-scope visualization channel:
// a WebSocket endpoint at :6696/ws streaming JSON event
// messages to a browser front-end, one connection per client. It is
// intentionally thin, a fan-out of whatever Broadcast is given rather
// than a protocol. Nothing in this module calls Broadcast, so connected
// clients receive no messages.
package visws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is one fan-out frame: a tagged event plus whatever payload the
// front-end needs to render it. No schema is promised beyond "JSON
// messages over one WebSocket per client".
type Message struct {
	EntityID string      `json:"entityId"`
	Kind     string      `json:"kind"`
	Payload  interface{} `json:"payload"`
}

// Hub fans out Broadcast calls to every connected client.
type Hub struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Message
}

// NewHub constructs an empty Hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{logger: logger, clients: map[*websocket.Conn]chan Message{}}
}

// Broadcast enqueues msg for delivery to every currently-connected
// client. Slow clients are dropped rather than blocking the caller.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.logger.Warnw("visualization client too slow, dropping connection", "remote", conn.RemoteAddr())
			close(ch)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams Broadcast
// messages to it until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "err", err)
		return
	}

	ch := make(chan Message, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for msg := range ch {
		data, err := api.Marshal(msg)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
