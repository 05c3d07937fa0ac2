package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (s *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, params)
	return &models.Message{ID: len(s.sent)}, nil
}

func testEvent(t *testing.T, topic string) *model.OutboxMessage {
	t.Helper()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	ev := model.SwapEvent{
		RequestID:   uuid.MustParse("00000000-0000-0000-0000-0000000000aa"),
		Status:      "pending",
		ProposerID:  "alice",
		RecipientID: "bob",
		ProposerSlot: model.SlotSummary{
			Title: "Standup", StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour),
		},
		CounterpartSlot: model.SlotSummary{
			Title: "Review", StartTime: day.Add(14 * time.Hour), EndTime: day.Add(15*time.Hour + 30*time.Minute),
		},
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	return &model.OutboxMessage{ID: uuid.New(), Topic: topic, Payload: payload, Status: model.OutboxStatusPending}
}

func TestFormatSlotTime(t *testing.T) {
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "03.03.2025 09:00-10:30", FormatSlotTime(start, start.Add(90*time.Minute)))
	assert.Equal(t, "03.03.2025 09:00 - 04.03.2025 01:00", FormatSlotTime(start, start.Add(16*time.Hour)))
}

func TestFormatEvent(t *testing.T) {
	msg := testEvent(t, model.TopicSwapProposed)
	ev, err := DecodeEvent(msg)
	require.NoError(t, err)

	text := FormatEvent(model.TopicSwapProposed, ev)
	assert.Equal(t, "🔄 Новый запрос на обмен\n\n"+
		"alice предлагает «Standup» (03.03.2025 09:00-10:00)\n"+
		"в обмен на «Review» (03.03.2025 14:00-15:30)\n"+
		"Получатель: bob", text)

	text = FormatEvent(model.TopicSwapAccepted, ev)
	assert.Contains(t, text, "✅ Обмен подтверждён")
	assert.Contains(t, text, "alice получает «Review»")
	assert.Contains(t, text, "bob получает «Standup»")

	text = FormatEvent(model.TopicSwapRejected, ev)
	assert.Contains(t, text, "❌ Обмен отклонён")
	assert.Contains(t, text, "bob отклонил предложение alice")
}

func TestDecodeEvent_Malformed(t *testing.T) {
	_, err := DecodeEvent(&model.OutboxMessage{Topic: model.TopicSwapAccepted, Payload: []byte("{")})
	require.Error(t, err)
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, 42, zap.NewNop())

	require.NoError(t, n.Notify(context.Background(), testEvent(t, model.TopicSwapAccepted)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Обмен подтверждён")

	sender.err = errors.New("telegram unavailable")
	err := n.Notify(context.Background(), testEvent(t, model.TopicSwapAccepted))
	require.Error(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestFanout_CollectsErrors(t *testing.T) {
	ok := &fakeSender{}
	failing := &fakeSender{err: errors.New("boom")}
	f := Fanout{
		NewLogNotifier(zap.NewNop()),
		NewTelegramNotifier(failing, 1, zap.NewNop()),
		NewTelegramNotifier(ok, 2, zap.NewNop()),
	}

	err := f.Notify(context.Background(), testEvent(t, model.TopicSwapRejected))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Len(t, ok.sent, 1)

	require.NoError(t, Fanout{NewLogNotifier(zap.NewNop())}.Notify(context.Background(), testEvent(t, model.TopicSwapProposed)))
}
