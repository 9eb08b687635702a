package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts a summary of each placed order to an admin chat.
type TelegramSink struct {
	bot    sender
	chatID int64
}

func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSink) Send(ctx context.Context, e OrderPlaced) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, formatOrderPlaced(e))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}

func formatOrderPlaced(e OrderPlaced) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order #%d\n", e.OrderID)
	fmt.Fprintf(&b, "User: %d\n", e.UserID)
	if !e.PlacedAt.IsZero() {
		fmt.Fprintf(&b, "Placed: %s\n", e.PlacedAt.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("Items:\n")
	for _, l := range e.Lines {
		fmt.Fprintf(&b, "  item %d x %d = %s\n", l.ItemID, l.Quantity, l.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s", e.TotalAmount.StringFixed(2))
	return b.String()
}
