// Package whatsapp provides the WhatsApp transport adapter for ZapFlow.
package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	watypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/vfbarros/zapflow/internal/config"
	"github.com/vfbarros/zapflow/internal/types"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// Sink receives normalized inbound messages (the router).
type Sink interface {
	Submit(msg *types.InboundMessage)
}

// Bot is the WhatsApp channel.
type Bot struct {
	client *whatsmeow.Client
	sink   Sink
	config *config.WhatsAppConfig
	store  *sqlstore.Container

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	lastError error
}

// waLogger bridges whatsmeow's waLog.Logger to our L_* functions.
type waLogger struct {
	module string
}

func (l *waLogger) Debugf(msg string, args ...interface{}) {
	L_debug(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waLogger) Infof(msg string, args ...interface{}) {
	L_info(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waLogger) Warnf(msg string, args ...interface{}) {
	L_warn(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waLogger) Errorf(msg string, args ...interface{}) {
	L_error(fmt.Sprintf("whatsmeow/%s: %s", l.module, fmt.Sprintf(msg, args...)))
}

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{module: l.module + "/" + module}
}

// New creates a WhatsApp bot from a previously paired device store.
func New(cfg *config.WhatsAppConfig, sink Sink) (*Bot, error) {
	db, err := sql.Open("sqlite3", cfg.Database+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open whatsapp db: %w", err)
	}

	container := sqlstore.NewWithDB(db, "sqlite3", &waLogger{module: "store"})
	if err := container.Upgrade(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to upgrade whatsapp store: %w", err)
	}

	device, err := container.GetFirstDevice(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get whatsapp device: %w", err)
	}
	if device == nil {
		return nil, fmt.Errorf("no whatsapp device paired - run 'zapflow link' first")
	}

	client := whatsmeow.NewClient(device, &waLogger{module: "client"})
	ctx, cancel := context.WithCancel(context.Background())

	return &Bot{
		client: client,
		sink:   sink,
		config: cfg,
		store:  container,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Name returns the channel name.
func (b *Bot) Name() string { return "whatsapp" }

// Start connects to WhatsApp and begins feeding the sink.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.client.AddEventHandler(b.handleEvent)
	if err := b.client.Connect(); err != nil {
		b.lastError = err
		return fmt.Errorf("whatsapp: failed to connect: %w", err)
	}

	b.running = true
	b.startedAt = time.Now()
	b.lastError = nil

	L_info("whatsapp: connected", "jid", b.client.Store.ID)
	return nil
}

// Stop disconnects from WhatsApp.
func (b *Bot) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}

	L_info("whatsapp: disconnecting")
	b.cancel()
	b.client.Disconnect()
	b.running = false
	return nil
}

// Connected reports whether the client currently holds a connection.
func (b *Bot) Connected() bool {
	return b.client.IsConnected()
}

// handleEvent is the whatsmeow event handler.
func (b *Bot) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		b.handleMessage(v)
	case *events.Connected:
		L_info("whatsapp: connected to server")
	case *events.Disconnected:
		L_warn("whatsapp: disconnected from server")
	case *events.LoggedOut:
		L_error("whatsapp: logged out - re-pair with 'zapflow link'", "reason", v.Reason)
		b.mu.Lock()
		b.lastError = fmt.Errorf("logged out: %v", v.Reason)
		b.mu.Unlock()
	}
}

// handleMessage normalizes an incoming WhatsApp message and submits it.
func (b *Bot) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}

	sender := evt.Info.Sender.User
	if sender == "" && evt.Info.SenderAlt.User != "" {
		// LID addressing: Sender may carry the LID and SenderAlt the
		// phone number, or vice versa.
		sender = evt.Info.SenderAlt.User
	}

	msg := types.NewInboundMessage("whatsapp", sender, "")
	msg.Chat = evt.Info.Chat.String()
	msg.IsGroup = evt.Info.IsGroup
	msg.Raw = evt

	wa := evt.Message
	switch {
	case wa.GetConversation() != "":
		msg.Text = wa.GetConversation()
	case wa.GetExtendedTextMessage() != nil:
		msg.Text = wa.GetExtendedTextMessage().GetText()
	case wa.GetButtonsResponseMessage() != nil:
		msg.SelectionID = wa.GetButtonsResponseMessage().GetSelectedButtonID()
		msg.Text = wa.GetButtonsResponseMessage().GetSelectedDisplayText()
	case wa.GetListResponseMessage() != nil:
		msg.SelectionID = wa.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID()
		msg.Text = wa.GetListResponseMessage().GetTitle()
	default:
		L_debug("whatsapp: unsupported message type, ignoring", "sender", sender)
		return
	}

	L_debug("whatsapp: message received", "sender", sender, "chat", msg.Chat,
		"group", msg.IsGroup, "selection", msg.SelectionID)
	b.sink.Submit(msg)
}

// SendMessage implements types.Transport. The recipient is a JID string
// as produced by handleMessage.
func (b *Bot) SendMessage(ctx context.Context, recipient string, content *types.Outbound) error {
	jid, err := watypes.ParseJID(recipient)
	if err != nil {
		return fmt.Errorf("whatsapp: bad recipient %q: %w", recipient, err)
	}

	msg, err := b.buildMessage(content)
	if err != nil {
		return err
	}

	_, err = b.client.SendMessage(ctx, jid, msg)
	return err
}

// buildMessage renders the open content descriptor into a WhatsApp
// protobuf message, richest supported payload first.
func (b *Bot) buildMessage(content *types.Outbound) (*waE2E.Message, error) {
	switch {
	case content.Reaction != "":
		src, ok := content.QuoteOf.(*events.Message)
		if !ok {
			return nil, fmt.Errorf("whatsapp: reaction needs the original message handle")
		}
		return &waE2E.Message{
			ReactionMessage: &waE2E.ReactionMessage{
				Key: &waCommon.MessageKey{
					RemoteJID: proto.String(src.Info.Chat.String()),
					FromMe:    proto.Bool(false),
					ID:        proto.String(src.Info.ID),
				},
				Text:              proto.String(content.Reaction),
				SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
			},
		}, nil

	case content.Poll != nil:
		return b.client.BuildPollCreation(content.Poll.Question, content.Poll.Options, 1), nil

	case content.List != nil:
		rows := make([]*waE2E.ListMessage_Row, 0, len(content.List.Rows))
		for _, r := range content.List.Rows {
			rows = append(rows, &waE2E.ListMessage_Row{
				RowID:       proto.String(r.ID),
				Title:       proto.String(r.Title),
				Description: proto.String(r.Description),
			})
		}
		return &waE2E.Message{
			ListMessage: &waE2E.ListMessage{
				Title:       proto.String(content.List.Title),
				Description: proto.String(content.Text),
				ButtonText:  proto.String(content.List.ButtonText),
				ListType:    waE2E.ListMessage_SINGLE_SELECT.Enum(),
				Sections: []*waE2E.ListMessage_Section{{
					Title: proto.String(content.List.Title),
					Rows:  rows,
				}},
			},
		}, nil

	case len(content.Buttons) > 0:
		buttons := make([]*waE2E.ButtonsMessage_Button, 0, len(content.Buttons))
		for _, btn := range content.Buttons {
			buttons = append(buttons, &waE2E.ButtonsMessage_Button{
				ButtonID: proto.String(btn.ID),
				ButtonText: &waE2E.ButtonsMessage_Button_ButtonText{
					DisplayText: proto.String(btn.Label),
				},
				Type: waE2E.ButtonsMessage_Button_RESPONSE.Enum(),
			})
		}
		return &waE2E.Message{
			ButtonsMessage: &waE2E.ButtonsMessage{
				ContentText: proto.String(content.Text),
				Buttons:     buttons,
			},
		}, nil

	default:
		if src, ok := content.QuoteOf.(*events.Message); ok {
			return &waE2E.Message{
				ExtendedTextMessage: &waE2E.ExtendedTextMessage{
					Text: proto.String(content.Text),
					ContextInfo: &waE2E.ContextInfo{
						StanzaID:      proto.String(src.Info.ID),
						Participant:   proto.String(src.Info.Sender.String()),
						QuotedMessage: src.Message,
					},
				},
			}, nil
		}
		return &waE2E.Message{Conversation: proto.String(content.Text)}, nil
	}
}
