package types

import "context"

// Outbound is the open content descriptor passed to a transport's
// SendMessage. The core never interprets it beyond routing; transports
// render whatever subset they support and fall back to Text.
type Outbound struct {
	Text     string     // Plain text body (always set as fallback)
	Buttons  []Button   // Quick-reply buttons (optional)
	List     *ListMenu  // Single-select list menu (optional)
	Poll     *Poll      // Poll (optional)
	Reaction string     // Emoji reaction to QuoteOf (optional)
	QuoteOf  any        // Opaque handle of the message to quote/react to
}

// Button is one quick-reply option.
type Button struct {
	ID    string
	Label string
}

// ListMenu is a titled single-select list.
type ListMenu struct {
	Title      string
	ButtonText string
	Rows       []ListRow
}

// ListRow is one selectable row in a ListMenu.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// Poll is a multi-option poll.
type Poll struct {
	Question string
	Options  []string
}

// TextMessage builds a plain-text Outbound.
func TextMessage(text string) *Outbound {
	return &Outbound{Text: text}
}

// Transport is the narrow surface the core consumes from a messaging
// channel. Connecting, authenticating, reconnect/backoff and pairing all
// live behind it.
type Transport interface {
	Name() string
	SendMessage(ctx context.Context, recipient string, content *Outbound) error
}
