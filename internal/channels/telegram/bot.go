// Package telegram provides the Telegram transport adapter for ZapFlow.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/vfbarros/zapflow/internal/config"
	"github.com/vfbarros/zapflow/internal/types"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// recipientPrefix namespaces Telegram identifiers so state keys and
// send-queue recipients never collide with WhatsApp ones.
const recipientPrefix = "tg:"

// Sink receives normalized inbound messages (the router).
type Sink interface {
	Submit(msg *types.InboundMessage)
}

// Bot is the Telegram channel.
type Bot struct {
	bot  *tele.Bot
	sink Sink

	mu      sync.Mutex
	running bool
}

// New creates a Telegram bot using long polling.
func New(cfg *config.TelegramConfig, sink Sink) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	L_info("telegram: connected", "bot", "@"+bot.Me.Username, "id", bot.Me.ID)

	b := &Bot{bot: bot, sink: sink}
	bot.Handle(tele.OnText, b.onText)
	bot.Handle(tele.OnCallback, b.onCallback)
	return b, nil
}

// Name returns the channel name.
func (b *Bot) Name() string { return "telegram" }

// Start begins long polling in the background.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	b.running = true
	go b.bot.Start()
	L_info("telegram: bot ready and listening")
	return nil
}

// Stop halts polling.
func (b *Bot) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}
	b.bot.Stop()
	b.running = false
	return nil
}

func (b *Bot) onText(c tele.Context) error {
	msg := types.NewInboundMessage("telegram",
		recipientPrefix+strconv.FormatInt(c.Sender().ID, 10), c.Text())
	msg.Chat = recipientPrefix + strconv.FormatInt(c.Chat().ID, 10)
	msg.IsGroup = c.Chat().Type != tele.ChatPrivate
	msg.Raw = c.Message()

	L_debug("telegram: message received", "sender", msg.Sender, "group", msg.IsGroup)
	b.sink.Submit(msg)
	return nil
}

func (b *Bot) onCallback(c tele.Context) error {
	data := strings.TrimPrefix(c.Callback().Data, "\f")
	if i := strings.IndexByte(data, '|'); i >= 0 {
		data = data[:i]
	}

	msg := types.NewInboundMessage("telegram",
		recipientPrefix+strconv.FormatInt(c.Sender().ID, 10), "")
	msg.Chat = recipientPrefix + strconv.FormatInt(c.Chat().ID, 10)
	msg.SelectionID = data
	msg.Raw = c.Message()

	b.sink.Submit(msg)
	// Dismiss the loading spinner on the client.
	return c.Respond()
}

// SendMessage implements types.Transport for "tg:<chatID>" recipients.
func (b *Bot) SendMessage(ctx context.Context, recipient string, content *types.Outbound) error {
	idStr := strings.TrimPrefix(recipient, recipientPrefix)
	chatID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad recipient %q: %w", recipient, err)
	}
	to := tele.ChatID(chatID)

	switch {
	case content.Poll != nil:
		poll := &tele.Poll{Type: tele.PollRegular, Question: content.Poll.Question}
		poll.AddOptions(content.Poll.Options...)
		_, err = b.bot.Send(to, poll)

	case content.List != nil:
		// Telegram has no native list menus; render rows as an inline
		// keyboard, one button per row.
		markup := &tele.ReplyMarkup{}
		var rows []tele.Row
		for _, r := range content.List.Rows {
			rows = append(rows, markup.Row(markup.Data(r.Title, r.ID)))
		}
		markup.Inline(rows...)
		_, err = b.bot.Send(to, content.Text, markup)

	case len(content.Buttons) > 0:
		markup := &tele.ReplyMarkup{}
		var btns []tele.Btn
		for _, btn := range content.Buttons {
			btns = append(btns, markup.Data(btn.Label, btn.ID))
		}
		markup.Inline(markup.Row(btns...))
		_, err = b.bot.Send(to, content.Text, markup)

	case content.Reaction != "":
		// Reactions need a concrete message reference; fall back to a
		// short text acknowledgement when we have none.
		_, err = b.bot.Send(to, content.Reaction)

	default:
		_, err = b.bot.Send(to, content.Text)
	}
	return err
}

// IsRecipient reports whether a recipient identifier belongs to this
// channel.
func IsRecipient(recipient string) bool {
	return strings.HasPrefix(recipient, recipientPrefix)
}
