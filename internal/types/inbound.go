// Package types contains shared types used across multiple packages.
package types

import (
	"github.com/google/uuid"
)

// InboundMessage represents a single "message received" event from a
// transport, normalized from whatever the underlying representation was
// (plain conversation string, extended-text payload, button/list selection).
//
// All transports (whatsapp, telegram) produce InboundMessage; the router
// consumes them one at a time in arrival order.
type InboundMessage struct {
	// === Identity ===
	ID     string // Unique message ID (auto-generated if empty)
	Sender string // Stable user identifier (phone/JID for whatsapp, numeric ID for telegram)
	Chat   string // Chat the message arrived in (equals Sender for direct chats)

	// === Source ===
	Source string // "whatsapp", "telegram", "test"

	// === Content ===
	Text        string // Normalized message text (empty for pure media/selection)
	SelectionID string // Selected button/list row identifier, if this is a structured reply
	IsGroup     bool   // Group vs direct origin

	// === Transport handle ===
	// Opaque handle back to the originating message, for quoting/reacting.
	// The core never interprets it, only passes it back to the transport.
	Raw any
}

// NewInboundMessage creates an InboundMessage with a generated ID.
func NewInboundMessage(source, sender, text string) *InboundMessage {
	return &InboundMessage{
		ID:     uuid.NewString(),
		Sender: sender,
		Chat:   sender,
		Source: source,
		Text:   text,
	}
}

// IsSelection reports whether this message is a structured interactive
// reply rather than free text.
func (m *InboundMessage) IsSelection() bool {
	return m.SelectionID != ""
}
