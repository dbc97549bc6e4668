// Package channels owns the lifecycle of all messaging transports and
// multiplexes outbound sends to the right one.
package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vfbarros/zapflow/internal/channels/telegram"
	"github.com/vfbarros/zapflow/internal/channels/whatsapp"
	"github.com/vfbarros/zapflow/internal/config"
	"github.com/vfbarros/zapflow/internal/types"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// Channel is a managed transport: lifecycle plus the send capability.
type Channel interface {
	types.Transport
	Start(ctx context.Context) error
	Stop() error
}

// Sink receives normalized inbound messages from every channel.
type Sink interface {
	Submit(msg *types.InboundMessage)
}

// Manager starts, retries and stops the configured channels.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	cancels  []context.CancelFunc
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// StartAll starts every enabled channel. A channel that fails its first
// start is retried in the background with exponential backoff; the
// process keeps running either way.
func (m *Manager) StartAll(ctx context.Context, cfg config.ChannelsConfig, sink Sink) {
	if cfg.WhatsApp.Enabled {
		m.startWithRetry(ctx, "whatsapp", func() (Channel, error) {
			return whatsapp.New(&cfg.WhatsApp, sink)
		})
	} else {
		L_info("whatsapp: disabled by configuration")
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		m.startWithRetry(ctx, "telegram", func() (Channel, error) {
			return telegram.New(&cfg.Telegram, sink)
		})
	} else {
		L_info("telegram: disabled by configuration")
	}
}

// startWithRetry attempts one start, then falls back to a background
// retry loop on failure.
func (m *Manager) startWithRetry(ctx context.Context, name string, build func() (Channel, error)) {
	if err := m.startOne(ctx, name, build); err == nil {
		return
	}

	retryCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancels = append(m.cancels, cancel)
	m.mu.Unlock()

	go func() {
		backoff := 5 * time.Second
		maxBackoff := 5 * time.Minute
		attempt := 1

		for {
			select {
			case <-retryCtx.Done():
				L_info("channels: shutdown requested, stopping retry", "channel", name)
				return
			case <-time.After(backoff):
			}

			L_info("channels: retrying connection", "channel", name, "attempt", attempt, "backoff", backoff)
			if err := m.startOne(retryCtx, name, build); err == nil {
				L_info("channels: ready after retry", "channel", name, "attempts", attempt)
				return
			}

			attempt++
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}()
}

func (m *Manager) startOne(ctx context.Context, name string, build func() (Channel, error)) error {
	ch, err := build()
	if err != nil {
		L_warn("channels: create failed, will retry in background", "channel", name, "error", err)
		return err
	}
	if err := ch.Start(ctx); err != nil {
		L_warn("channels: start failed, will retry in background", "channel", name, "error", err)
		return err
	}

	m.mu.Lock()
	m.channels[name] = ch
	m.mu.Unlock()

	L_info("channels: ready and listening", "channel", name)
	return nil
}

// StopAll gracefully shuts down every running channel.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cancel := range m.cancels {
		cancel()
	}
	m.cancels = nil

	for name, ch := range m.channels {
		L_debug("channels: stopping", "channel", name)
		if err := ch.Stop(); err != nil {
			L_error("channels: stop failed", "channel", name, "error", err)
		}
	}
	m.channels = make(map[string]Channel)
}

// Get returns a channel by name, or nil.
func (m *Manager) Get(name string) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

// Transport returns the outbound multiplexer: the send queue drains
// into it and each recipient identifier picks its own channel.
func (m *Manager) Transport() types.Transport {
	return &mux{m: m}
}

type mux struct {
	m *Manager
}

func (x *mux) Name() string { return "mux" }

func (x *mux) SendMessage(ctx context.Context, recipient string, content *types.Outbound) error {
	name := "whatsapp"
	if telegram.IsRecipient(recipient) {
		name = "telegram"
	}

	ch := x.m.Get(name)
	if ch == nil {
		return fmt.Errorf("channel %q not running", name)
	}
	return ch.SendMessage(ctx, recipient, content)
}
