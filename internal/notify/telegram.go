package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "granomail/pkg/logx"
)

// TelegramConfig configures the alternate Telegram channel.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Telegram delivers notifications as bot messages to a fixed chat.
// Long transcripts are truncated: Telegram caps messages at 4096 chars
// and a chopped transcript still tells the operator the meeting is done.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

const telegramTextLimit = 4096

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*Telegram, error) {
	if cfg.Token == "" {
		return nil, errors.New("notify.telegram.token is required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("notify.telegram.chat_id is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{bot: bot, chatID: cfg.ChatID, log: log}, nil
}

func (t *Telegram) Channel() string { return "telegram" }

func (t *Telegram) Deliver(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := msg.Subject + "\n\n" + msg.Body
	if len(text) > telegramTextLimit {
		text = text[:telegramTextLimit-3] + "..."
	}

	_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, text, &tele.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}

	t.log.Info("telegram message sent", logx.Int64("chat_id", t.chatID))
	return nil
}
