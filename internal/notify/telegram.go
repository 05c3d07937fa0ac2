package notify

import (
	"context"
	"fmt"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender часть API бота, которая нужна уведомителю
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет события в чат Telegram
type TelegramNotifier struct {
	sender MessageSender
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(sender MessageSender, chatID int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, logger: logger}
}

// NewTelegramBot создаёт клиента Bot API без long polling
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, msg *model.OutboxMessage) error {
	ev, err := DecodeEvent(msg)
	if err != nil {
		return err
	}

	_, err = n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   FormatEvent(msg.Topic, ev),
	})
	if err != nil {
		n.logger.Warn("Failed to send telegram notification",
			zap.String("topic", msg.Topic),
			zap.String("request_id", ev.RequestID.String()),
			zap.Error(err))
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
