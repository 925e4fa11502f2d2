package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"wa-catalog/internal/convo"
)

// Config holds configuration to initialise the WhatsApp client.
type Config struct {
	StorePath string
	LogLevel  string
}

// MessageProcessor consumes inbound messages after conversion.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg convo.InboundMessage)
}

// Client wraps the WhatsMeow client and adapts its events to the
// transport-neutral message type the router consumes.
type Client struct {
	client    *whatsmeow.Client
	logger    *slog.Logger
	processor MessageProcessor
}

// New creates a WhatsApp client backed by an SQLite session store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}

	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waLogger := waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)
	client := whatsmeow.NewClient(deviceStore, waLogger)

	wc := &Client{
		client: client,
		logger: logger.With("component", "wa"),
	}
	client.AddEventHandler(wc.handleEvent)

	return wc, nil
}

// SetMessageProcessor registers the inbound message consumer.
func (c *Client) SetMessageProcessor(processor MessageProcessor) {
	c.processor = processor
}

// Start connects the client and handles the login/QR pairing flow.
func (c *Client) Start(ctx context.Context) error {
	if c.client.Store.ID == nil {
		c.logger.Info("pairing required, waiting for QR scan")
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get qr channel: %w", err)
		}

		go func() {
			for evt := range qrChan {
				if evt.Event == "code" {
					c.logger.Info("scan the QR code with WhatsApp", "qr", evt.Code)
				} else {
					c.logger.Info("pairing event received", "event", evt.Event)
				}
			}
		}()
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}

	c.logger.Info("whatsapp client connected")
	return nil
}

// Close disconnects the WhatsApp client.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)
	case *events.Connected:
		c.logger.Info("device connected")
	case *events.Disconnected:
		c.logger.Warn("device disconnected")
	}
}

// handleMessage converts one WhatsMeow event into the router's message
// type. Group chats and status broadcasts are ignored.
func (c *Client) handleMessage(evt *events.Message) {
	if evt.Message == nil || c.processor == nil {
		return
	}
	if evt.Info.IsGroup || evt.Info.Chat.Server == types.BroadcastServer {
		return
	}
	if evt.Info.IsFromMe {
		return
	}

	body, kind, hasMedia := extractContent(evt.Message)
	msg := convo.InboundMessage{
		ID:        string(evt.Info.ID),
		From:      evt.Info.Sender.User,
		To:        evt.Info.Chat.User,
		Body:      body,
		Kind:      kind,
		Timestamp: evt.Info.Timestamp,
		HasMedia:  hasMedia,
		PushName:  evt.Info.PushName,
	}

	c.logger.Info("received message", "from", msg.From, "kind", msg.Kind)
	go c.processor.ProcessMessage(context.Background(), msg)
}

func extractContent(msg *waProto.Message) (body, kind string, hasMedia bool) {
	switch {
	case msg.GetConversation() != "":
		return msg.GetConversation(), "text", false
	case msg.ExtendedTextMessage != nil:
		return msg.GetExtendedTextMessage().GetText(), "text", false
	case msg.ImageMessage != nil:
		return msg.GetImageMessage().GetCaption(), "image", true
	case msg.VideoMessage != nil:
		return msg.GetVideoMessage().GetCaption(), "video", true
	case msg.AudioMessage != nil:
		return "", "audio", true
	case msg.DocumentMessage != nil:
		return msg.GetDocumentMessage().GetCaption(), "document", true
	}
	return "", "unsupported", false
}

// SendText sends a text message to a phone-like identity.
func (c *Client) SendText(ctx context.Context, identity, text string) error {
	jid, err := parseIdentity(identity)
	if err != nil {
		return err
	}
	message := &waProto.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.client.SendMessage(ctx, jid, message); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// parseIdentity turns a bare phone number or full JID string into a JID.
func parseIdentity(identity string) (types.JID, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return types.EmptyJID, errors.New("empty identity")
	}
	if strings.ContainsRune(identity, '@') {
		jid, err := types.ParseJID(identity)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("parse jid: %w", err)
		}
		return jid, nil
	}
	return types.NewJID(strings.TrimPrefix(identity, "+"), types.DefaultUserServer), nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
