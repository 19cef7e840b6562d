// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/alice-iceberg/SoundFeatures/internal/log"
	"github.com/gorilla/websocket"
)

// writeWait bounds a single write to a client so a stalled client cannot
// hold up the others.
const writeWait = time.Second

// ErrBroadcastFull is returned when a report is dropped because the
// broadcast queue is full.
var ErrBroadcastFull = errors.New("websocket broadcast queue full")

// WebSocketTransport broadcasts reports as JSON to every client connected
// to its handler. It is meant for live monitoring; clients that fall
// behind lose messages.
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Report

	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// NewWebSocketTransport creates a new WebSocketTransport instance with a
// broadcast queue of queueSize reports.
func NewWebSocketTransport(queueSize int) *WebSocketTransport {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	wst := &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local monitoring tool, any origin.
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Report, queueSize),
	}

	wst.wg.Add(1)
	go wst.handleBroadcasts()
	return wst
}

// Name implements Sink.
func (wst *WebSocketTransport) Name() string { return "websocket" }

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// ServeHTTP upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	wst.clientsMu.Lock()
	if wst.isClosed() {
		wst.clientsMu.Unlock()
		conn.Close()
		return
	}
	wst.clients[conn] = true
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Infof("WebSocketTransport: Client connected, total: %d", total)

	// Handle disconnect
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		wst.clientsMu.Lock()
		_, known := wst.clients[conn]
		delete(wst.clients, conn)
		total := len(wst.clients)
		wst.clientsMu.Unlock()
		conn.Close()
		if known {
			log.Infof("WebSocketTransport: Client disconnected, total: %d", total)
		}
	}()
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	defer wst.wg.Done()

	for rep := range wst.broadcast {
		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.WriteJSON(rep); err != nil {
				log.Debugf("WebSocketTransport: Error sending to client: %v", err)
				client.Close()
				delete(wst.clients, client)
			}
		}
		wst.clientsMu.Unlock()
	}
}

// Report queues rep for broadcast. It never blocks.
func (wst *WebSocketTransport) Report(rep Report) error {
	wst.closeMu.RLock()
	defer wst.closeMu.RUnlock()
	if wst.closed {
		return nil
	}

	select {
	case wst.broadcast <- rep:
		return nil
	default:
		return ErrBroadcastFull
	}
}

func (wst *WebSocketTransport) isClosed() bool {
	wst.closeMu.RLock()
	defer wst.closeMu.RUnlock()
	return wst.closed
}

// Close flushes pending broadcasts and disconnects every client.
func (wst *WebSocketTransport) Close() error {
	wst.closeMu.Lock()
	if wst.closed {
		wst.closeMu.Unlock()
		return nil
	}
	wst.closed = true
	close(wst.broadcast)
	wst.closeMu.Unlock()

	wst.wg.Wait()

	wst.clientsMu.Lock()
	for client := range wst.clients {
		client.Close()
	}
	wst.clients = make(map[*websocket.Conn]bool)
	wst.clientsMu.Unlock()

	log.Debugf("WebSocketTransport: Closed")
	return nil
}

// Ensure WebSocketTransport satisfies the interfaces
var (
	_ Sink         = (*WebSocketTransport)(nil)
	_ http.Handler = (*WebSocketTransport)(nil)
)
