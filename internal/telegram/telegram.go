// Package telegram hosts the Telegram client: long polling, inbound message
// forwarding and outbound replies.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"truck_notify_bot/internal/config"
	"truck_notify_bot/internal/dispatch"
	"truck_notify_bot/internal/logging"
)

type botAPI interface {
	Start(ctx context.Context)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

// MessageHandler consumes inbound text messages.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg dispatch.Message) error
}

// UserRegistrar records that a user talked to the bot.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, userID int64, username string) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
		"my_chat_member",
	}

	createBot = func(token string, options ...bot.Option) (botAPI, error) {
		return bot.New(token, options...)
	}
)

// Option customizes a Client.
type Option func(*Client)

// WithUserRegistrar registers every sender before their message is handled.
func WithUserRegistrar(users UserRegistrar) Option {
	return func(c *Client) {
		c.users = users
	}
}

// Client wraps the Telegram bot instance and implements dispatch.Sender.
type Client struct {
	bot    botAPI
	logger *logrus.Entry
	users  UserRegistrar

	mu      sync.RWMutex
	handler MessageHandler
}

// NewClient initializes the Telegram bot with long polling and the update
// handler. Messages are dropped until SetHandler is called.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	client := &Client{logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	tgBot, err := createBot(cfg.TelegramToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(client.handleUpdate),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	client.bot = tgBot
	return client, nil
}

// SetHandler installs the consumer of inbound messages.
func (c *Client) SetHandler(handler MessageHandler) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
}

func (c *Client) messageHandler() MessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

// SendText sends a Markdown message, retrying as plain text when Telegram
// rejects the markup.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	if c == nil || c.bot == nil {
		return errors.New("telegram client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}

	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event":   "telegram_markdown_fallback",
		"chat_id": chatID,
	}).WithError(err).Warn("markdown send failed, retrying as plain text")

	if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendDocument uploads an in-memory file to the chat.
func (c *Client) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string) error {
	if c == nil || c.bot == nil {
		return errors.New("telegram client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if chatID == 0 {
		return errors.New("chat id is required")
	}
	if len(data) == 0 {
		return errors.New("document is empty")
	}

	_, err := c.bot.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:    chatID,
		Document:  &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(data)},
		Caption:   caption,
		ParseMode: models.ParseModeMarkdownV1,
	})
	if err != nil {
		return fmt.Errorf("send document %s: %w", filename, err)
	}

	c.logger.WithFields(logging.Fields{
		"event":    "telegram_document_sent",
		"chat_id":  chatID,
		"filename": filename,
		"bytes":    len(data),
	}).Debug("document sent")
	return nil
}

type updateMeta struct {
	userID     int64
	chatID     int64
	username   string
	text       string
	updateType string
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)
	c.logUpdate(meta)

	if meta.updateType != "message" || meta.text == "" || meta.chatID == 0 {
		return
	}

	c.register(ctx, meta)

	handler := c.messageHandler()
	if handler == nil {
		c.logger.WithField("event", "telegram_no_handler").Warn("message dropped, no handler installed")
		return
	}

	err := handler.HandleMessage(ctx, dispatch.Message{
		UserID:   meta.userID,
		ChatID:   meta.chatID,
		Username: meta.username,
		Text:     meta.text,
	})
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "telegram_handle_error",
			"user_id": meta.userID,
			"chat_id": meta.chatID,
		}).WithError(err).Error("message handler returned error")
	}
}

func (c *Client) register(ctx context.Context, meta updateMeta) {
	if c.users == nil || meta.userID == 0 {
		return
	}

	if _, err := c.users.EnsureUser(ctx, meta.userID, meta.username); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "user_register_error",
			"user_id": meta.userID,
		}).WithError(err).Warn("failed to register user")
	}
}

func (c *Client) logUpdate(meta updateMeta) {
	fields := logging.Fields{
		"event":       "telegram_update",
		"update_type": meta.updateType,
	}

	if meta.text != "" {
		fields["text"] = meta.text
	}
	if meta.userID != 0 {
		fields["user_id"] = meta.userID
	}
	if meta.chatID != 0 {
		fields["chat_id"] = meta.chatID
	}

	c.logger.WithFields(fields).Info("telegram update received")
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			username:   username(update.Message.From),
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.EditedMessage != nil:
		return updateMeta{
			userID:     userID(update.EditedMessage.From),
			chatID:     chatID(&update.EditedMessage.Chat),
			username:   username(update.EditedMessage.From),
			text:       strings.TrimSpace(update.EditedMessage.Text),
			updateType: "edited_message",
		}
	case update.MyChatMember != nil:
		return updateMeta{
			userID:     userID(&update.MyChatMember.From),
			chatID:     chatID(&update.MyChatMember.Chat),
			username:   username(&update.MyChatMember.From),
			updateType: "my_chat_member",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func username(user *models.User) string {
	if user == nil {
		return ""
	}

	return user.Username
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}
