package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/watasiwa/tradegate/internal/notification"
)

// Sender is the part of the Bot API needed to reply.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends notifications as chat messages. Message.Destination
// must be a chat id.
type TelegramNotifier struct {
	api Sender
}

// NewTelegramNotifier wraps api.
func NewTelegramNotifier(api Sender) *TelegramNotifier {
	return &TelegramNotifier{api: api}
}

// Send delivers message.Body to the chat.
func (n *TelegramNotifier) Send(_ context.Context, message notification.Message) error {
	chatID, err := strconv.ParseInt(message.Destination, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", message.Destination, err)
	}
	if _, err := n.api.Send(tgbotapi.NewMessage(chatID, message.Body)); err != nil {
		return fmt.Errorf("send %s message: %w", message.Kind, err)
	}
	return nil
}
