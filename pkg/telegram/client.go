package telegram

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// MaxMessageLength is the Telegram limit for one message, counted in characters.
const MaxMessageLength = 4096

// Notifier sends HTML messages to the configured chat.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
}

type client struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
}

// NewClient creates a Telegram notifier. Sends to the chat are paced at one per second
// with a small burst, which keeps the bot under the per-chat flood limit.
func NewClient(botToken string, chatID int64) (Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &client{
		bot:     bot,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}, nil
}

// SendMessage sends text, split into several messages when it is too long. It returns when
// ctx ends even if the bot call is still in flight.
func (c *client) SendMessage(ctx context.Context, text string) error {
	for _, part := range SplitMessage(text, MaxMessageLength) {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		msg := tgbotapi.NewMessage(c.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true

		done := make(chan error, 1)
		go func() {
			_, err := c.bot.Send(msg)
			done <- err
		}()
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("telegram send: %w", err)
			}
		case <-ctx.Done():
			return fmt.Errorf("telegram send: %w", ctx.Err())
		}
	}
	return nil
}

// SplitMessage cuts text into parts of at most limit characters, preferring line breaks.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := lastNewline(runes[:limit]); i > 0 {
			cut = i + 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastNewline(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
