package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkotov/splitton/internal/storage"
)

// botSender is the slice of the Telegram bot API the notifier uses.
// *tgbotapi.BotAPI satisfies it.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends a chat message to the bill creator when a share
// is paid. Delivery failures are logged and dropped.
type TelegramNotifier struct {
	bot   botSender
	store storage.Store
}

// NewTelegramNotifier creates a notifier backed by the given bot.
func NewTelegramNotifier(bot *tgbotapi.BotAPI, store storage.Store) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, store: store}
}

// Publish sends a confirmation message for EventIntentConfirmed and
// EventBillSettled; other event types are ignored.
func (n *TelegramNotifier) Publish(ctx context.Context, event Event) {
	text, chatID, err := n.render(ctx, event)
	if err != nil {
		slog.Warn("telegram notification skipped", "type", event.Type,
			"bill_id", event.BillID, "error", err)
		return
	}
	if text == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		slog.Warn("telegram notification failed", "type", event.Type,
			"bill_id", event.BillID, "error", err)
	}
}

func (n *TelegramNotifier) render(ctx context.Context, event Event) (string, int64, error) {
	bill, err := n.store.GetBill(ctx, event.BillID)
	if err != nil {
		return "", 0, fmt.Errorf("load bill: %w", err)
	}
	creator, err := n.store.GetUser(ctx, bill.CreatorID)
	if err != nil {
		return "", 0, fmt.Errorf("load creator: %w", err)
	}

	switch event.Type {
	case EventIntentConfirmed:
		name := event.ParticipantID
		for _, p := range bill.Participants {
			if p.ID == event.ParticipantID {
				name = p.DisplayName()
				break
			}
		}
		return fmt.Sprintf("💸 %s paid their share of «%s»", name, bill.Title), creator.TelegramID, nil
	case EventBillSettled:
		return fmt.Sprintf("✅ «%s» is fully settled", bill.Title), creator.TelegramID, nil
	default:
		return "", 0, nil
	}
}
