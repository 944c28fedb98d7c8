// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package websocket

import (
	"context"
	"time"

	"github.com/soundtally/soundtally/internal/ledger"
	"github.com/soundtally/soundtally/internal/logging"
)

// Relay consumes ledger change events and rebroadcasts them to websocket
// clients as refresh hints.
type Relay struct {
	notifier *ledger.Notifier
	hub      *Hub
}

// NewRelay creates a relay between the change notifier and the hub.
func NewRelay(notifier *ledger.Notifier, hub *Hub) *Relay {
	return &Relay{notifier: notifier, hub: hub}
}

// RunWithContext consumes change events until ctx is cancelled. Designed for
// suture supervision: a returned error triggers a restart with a fresh
// subscription.
func (r *Relay) RunWithContext(ctx context.Context) error {
	messages, err := r.notifier.Subscribe(ctx)
	if err != nil {
		return err
	}

	logging.Info().Str("component", "ledger-relay").Msg("relay started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "ledger-relay").Msg("relay stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				logging.Info().Str("component", "ledger-relay").Msg("change stream closed")
				return nil
			}

			event, err := ledger.DecodeChangeEvent(msg.Payload)
			if err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable change event")
				msg.Ack()
				continue
			}

			r.hub.BroadcastLedgerChanged(LedgerChangedData{
				SongID:    event.SongID,
				Source:    string(event.Source),
				PlayCount: event.PlayCount,
				Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			})
			msg.Ack()
		}
	}
}
