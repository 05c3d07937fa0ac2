package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amanas96/slot-swapper/internal/model"
	"go.uber.org/zap"
)

// Notifier доставляет одно событие из outbox. Ошибка означает что событие
// нужно повторить позже.
type Notifier interface {
	Notify(ctx context.Context, msg *model.OutboxMessage) error
}

// DecodeEvent разбирает полезную нагрузку события swap.*
func DecodeEvent(msg *model.OutboxMessage) (*model.SwapEvent, error) {
	var ev model.SwapEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.Topic, err)
	}
	return &ev, nil
}

// LogNotifier пишет события в лог
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg *model.OutboxMessage) error {
	ev, err := DecodeEvent(msg)
	if err != nil {
		return err
	}

	n.logger.Info("Swap event",
		zap.String("topic", msg.Topic),
		zap.String("message_id", msg.ID.String()),
		zap.String("request_id", ev.RequestID.String()),
		zap.String("status", ev.Status),
		zap.String("proposer_id", ev.ProposerID),
		zap.String("recipient_id", ev.RecipientID),
		zap.Int("attempt", msg.Attempts+1),
	)
	return nil
}

// Fanout рассылает событие всем получателям; ошибки собираются вместе
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, msg *model.OutboxMessage) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
