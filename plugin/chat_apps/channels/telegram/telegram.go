// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/meetwhenah/meetwhenah/plugin/chat_apps"
)

const DefaultParseMode = tgbotapi.ModeHTML

// Config holds configuration for the Telegram channel.
type Config struct {
	BotToken string
}

// Channel implements chat_apps.Sender for the Telegram Bot API. Outbound
// calls go through a rate limiter kept under Telegram's 30 messages per
// second bot-wide cap.
type Channel struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewChannel creates a new Telegram channel.
func NewChannel(config *Config) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Telegram bot")
	}

	return &Channel{
		bot:     bot,
		limiter: rate.NewLimiter(rate.Limit(25), 5),
	}, nil
}

// Name returns the platform name.
func (c *Channel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// BotUsername returns the bot's username, used to build deep links.
func (c *Channel) BotUsername() string {
	return c.bot.Self.UserName
}

// SendMessage sends a message and returns the Telegram message id.
func (c *Channel) SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) (int, error) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid chat id %q", msg.ChatID)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, errors.Wrap(err, "rate limiter interrupted")
	}

	tgMsg := tgbotapi.NewMessage(chatID, msg.Content)
	tgMsg.ParseMode = DefaultParseMode
	if msg.ParseMode != "" {
		tgMsg.ParseMode = msg.ParseMode
	}
	if msg.ThreadID != nil {
		// Forum topics are addressed by replying into the topic's root
		// message.
		if threadID, err := strconv.Atoi(*msg.ThreadID); err == nil {
			tgMsg.ReplyToMessageID = threadID
		}
	}
	if markup, ok := buildMarkup(msg.Buttons); ok {
		tgMsg.ReplyMarkup = markup
	}

	sent, err := c.bot.Send(tgMsg)
	if err != nil {
		metricSendErrors.Inc()
		return 0, errors.Wrap(err, "failed to send telegram message")
	}
	metricMessagesSent.Inc()

	slog.Debug("telegram: sent message", "chat_id", msg.ChatID, "message_id", sent.MessageID)
	return sent.MessageID, nil
}

// EditMessage replaces the text of a previously sent message.
func (c *Channel) EditMessage(ctx context.Context, chatID string, messageID int, content string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid chat id %q", chatID)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter interrupted")
	}

	edit := tgbotapi.NewEditMessageText(id, messageID, content)
	edit.ParseMode = DefaultParseMode
	if _, err := c.bot.Send(edit); err != nil {
		return errors.Wrap(err, "failed to edit telegram message")
	}

	return nil
}

// AnswerCallback acknowledges an inline button press.
func (c *Channel) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter interrupted")
	}

	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := c.bot.Request(callback); err != nil {
		return errors.Wrap(err, "failed to answer callback")
	}

	return nil
}

func buildMarkup(rows [][]chat_apps.Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(rows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}

	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.CallbackData))
		}
		keyboard = append(keyboard, buttons)
	}

	return tgbotapi.NewInlineKeyboardMarkup(keyboard...), true
}

var _ chat_apps.Sender = (*Channel)(nil)
