// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package websocket pushes refresh hints to connected UI clients: a message
// when the ledger changes and one when a sync pass completes. Clients react
// by re-querying the stats API; the hints carry no authoritative data.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/metrics"
)

// Message types for WebSocket communication
const (
	MessageTypeLedgerChanged = "ledger_changed"
	MessageTypeSyncCompleted = "sync_completed"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub loop until ctx is cancelled, then closes all
// clients and returns ctx.Err(). Designed for suture supervision.
//
// Lifecycle events are drained before broadcasts so client state is
// consistent when a message goes out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// broadcastToClients sends a message to all connected clients in client-id
// order so delivery order is reproducible. A client with a full send buffer
// is dropped rather than allowed to stall the others.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

// LedgerChangedData is sent with ledger_changed messages.
type LedgerChangedData struct {
	SongID    string `json:"song_id"`
	Source    string `json:"source"`
	PlayCount int64  `json:"play_count"`
	Timestamp string `json:"timestamp"`
}

// BroadcastLedgerChanged hints clients that a song's count changed.
func (h *Hub) BroadcastLedgerChanged(data LedgerChangedData) {
	h.enqueue(Message{Type: MessageTypeLedgerChanged, Data: data})
}

// SyncCompletedData is sent with sync_completed messages.
type SyncCompletedData struct {
	Timestamp     string `json:"timestamp"`
	NewPlays      int    `json:"new_plays"`
	ItemsImported int    `json:"items_imported"`
}

// BroadcastSyncCompleted notifies clients that a sync pass finished.
func (h *Hub) BroadcastSyncCompleted(newPlays, itemsImported int) {
	h.enqueue(Message{
		Type: MessageTypeSyncCompleted,
		Data: SyncCompletedData{
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			NewPlays:      newPlays,
			ItemsImported: itemsImported,
		},
	})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
