package notify

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram caps messages at 4096 characters; long transcripts are truncated
// with a marker rather than split across messages.
const telegramMessageLimit = 4096

// Pre-escaped for MarkdownV2.
const truncationNotice = "\n\n\\[truncated\\]"

// TelegramSender posts the export to a Telegram chat. It ignores To/From:
// the destination chat is fixed at construction.
type TelegramSender struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSender{api: api, chatID: chatID}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	text := formatTelegram(msg)
	m := tgbotapi.NewMessage(t.chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := t.api.Send(m); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

func formatTelegram(msg Message) string {
	text := fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(msg.Subject), escapeMarkdown(msg.Body))
	if len(text) > telegramMessageLimit {
		cut := text[:telegramMessageLimit-len(truncationNotice)]
		// The limit is in bytes; never split a multi-byte rune, or the API
		// rejects the message as invalid UTF-8.
		for !utf8.ValidString(cut) {
			cut = cut[:len(cut)-1]
		}
		// Never end on a dangling escape.
		cut = strings.TrimRight(cut, "\\")
		text = cut + truncationNotice
	}
	return text
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)
	return replacer.Replace(text)
}
