package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/amanas96/slot-swapper/internal/model"
)

type topicDisplay struct {
	Emoji string
	Title string
}

var topicDisplays = map[string]topicDisplay{
	model.TopicSwapProposed: {"🔄", "Новый запрос на обмен"},
	model.TopicSwapAccepted: {"✅", "Обмен подтверждён"},
	model.TopicSwapRejected: {"❌", "Обмен отклонён"},
}

// FormatSlotTime форматирует интервал слота; для одного дня дата пишется один раз
func FormatSlotTime(start, end time.Time) string {
	if start.Year() == end.Year() && start.YearDay() == end.YearDay() {
		return fmt.Sprintf("%s %s-%s", start.Format("02.01.2006"), start.Format("15:04"), end.Format("15:04"))
	}
	return fmt.Sprintf("%s - %s", start.Format("02.01.2006 15:04"), end.Format("02.01.2006 15:04"))
}

func formatSlot(s model.SlotSummary) string {
	return fmt.Sprintf("«%s» (%s)", s.Title, FormatSlotTime(s.StartTime, s.EndTime))
}

// FormatEvent собирает текст уведомления
func FormatEvent(topic string, ev *model.SwapEvent) string {
	display, ok := topicDisplays[topic]
	if !ok {
		display = topicDisplay{"ℹ️", topic}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n\n", display.Emoji, display.Title)

	switch topic {
	case model.TopicSwapProposed:
		fmt.Fprintf(&sb, "%s предлагает %s\n", ev.ProposerID, formatSlot(ev.ProposerSlot))
		fmt.Fprintf(&sb, "в обмен на %s\n", formatSlot(ev.CounterpartSlot))
		fmt.Fprintf(&sb, "Получатель: %s", ev.RecipientID)
	case model.TopicSwapAccepted:
		fmt.Fprintf(&sb, "%s получает %s\n", ev.ProposerID, formatSlot(ev.CounterpartSlot))
		fmt.Fprintf(&sb, "%s получает %s", ev.RecipientID, formatSlot(ev.ProposerSlot))
	default:
		fmt.Fprintf(&sb, "%s отклонил предложение %s\n", ev.RecipientID, ev.ProposerID)
		fmt.Fprintf(&sb, "Слоты %s и %s снова доступны для обмена",
			formatSlot(ev.ProposerSlot), formatSlot(ev.CounterpartSlot))
	}

	return sb.String()
}
