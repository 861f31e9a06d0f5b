package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications to one chat
type Telegram struct {
	api    sender
	chatID int64
}

// NewTelegram logs in with token
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID}, nil
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
	")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
	"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
	"}", "\\}", ".", "\\.", "!", "\\!",
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

var categoryIcons = map[Category]string{
	CategoryCompletion: "✅",
	CategoryNoJobs:     "📭",
	CategoryDispatch:   "📤",
	CategoryProposal:   "📝",
	CategoryError:      "❌",
}

func (t *Telegram) Notify(_ context.Context, n Notification) error {
	icon, ok := categoryIcons[n.Category]
	if !ok {
		icon = "ℹ️"
	}

	text := fmt.Sprintf("%s *%s*\n", icon, escapeMarkdown(n.Title))
	if n.Message != "" {
		text += escapeMarkdown(n.Message) + "\n"
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "MarkdownV2"
	if n.Link != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("🔗 Open", n.Link)),
		)
	}

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
