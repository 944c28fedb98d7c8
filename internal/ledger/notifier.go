// Soundtally - Music Play-Count Reconciliation Service
// Copyright 2026 Soundtally Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/soundtally/soundtally/internal/logging"
	"github.com/soundtally/soundtally/internal/models"
)

// TopicLedgerChanged carries one message per accepted play.
const TopicLedgerChanged = "ledger.changed"

// ChangeEvent describes one accepted play. Consumers (the WebSocket relay)
// use it as a refresh hint; it is not a durable record.
type ChangeEvent struct {
	SongID    string        `json:"song_id"`
	Source    models.Source `json:"source"`
	Reason    string        `json:"reason"`
	PlayCount int64         `json:"play_count"`
	Timestamp time.Time     `json:"timestamp"`
}

// Notifier publishes ledger change events over an in-process pub/sub.
// Publishing is best effort: a failed publish is logged and dropped, it
// never fails the ledger commit it follows.
type Notifier struct {
	pubsub *gochannel.GoChannel
}

// NewNotifier creates the in-process change notifier.
func NewNotifier(logger watermill.LoggerAdapter) *Notifier {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)
	return &Notifier{pubsub: pubsub}
}

// PublishChange announces one accepted play.
func (n *Notifier) PublishChange(event ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Str("song_id", event.SongID).Msg("failed to marshal change event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if err := n.pubsub.Publish(TopicLedgerChanged, msg); err != nil {
		logging.Warn().Err(err).Str("song_id", event.SongID).Msg("failed to publish change event")
	}
}

// Subscribe returns a channel of change events. The subscription closes when
// ctx is cancelled or the notifier is closed.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return n.pubsub.Subscribe(ctx, TopicLedgerChanged)
}

// Close shuts down the pub/sub and closes all subscriber channels.
func (n *Notifier) Close() error {
	return n.pubsub.Close()
}

// DecodeChangeEvent parses a change event payload.
func DecodeChangeEvent(payload []byte) (ChangeEvent, error) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return ChangeEvent{}, err
	}
	return event, nil
}
