package inbox

import (
	"fmt"
	"time"

	"github.com/Webizinnovation/ServiceAppBack/internal/models"
)

// EmptyRoomPreview is shown for rooms with no messages yet and for text
// messages whose content is blank.
const EmptyRoomPreview = "Start a conversation"

// Summary is the preview line of a conversation row.
type Summary struct {
	Preview       string
	LastMessageAt *time.Time
}

// Summarize turns the last message of a room into its list preview.
// It is pure: the same message always yields the same summary. A nil
// message means the room has no messages yet.
func Summarize(msg *models.Message, counterpart models.Participant) Summary {
	if msg == nil {
		return Summary{Preview: EmptyRoomPreview}
	}

	var preview string
	switch msg.Kind {
	case models.KindImage:
		preview = withFilename("📷 Image", msg.Filename)
	case models.KindFile:
		preview = withFilename("📎 File", msg.Filename)
	case models.KindVoice:
		preview = fmt.Sprintf("🎤 Voice note (%s)", formatVoiceDuration(msg.VoiceDurationMS))
	default:
		preview = msg.Content
		if preview == "" {
			preview = EmptyRoomPreview
		}
	}

	if msg.SenderRole == counterpart.Role {
		preview = counterpart.DisplayName + ": " + preview
	}

	at := msg.CreatedAt
	return Summary{Preview: preview, LastMessageAt: &at}
}

func withFilename(base string, filename *string) string {
	if filename == nil || *filename == "" {
		return base
	}
	return base + ": " + *filename
}

// formatVoiceDuration renders a millisecond duration as m:ss. Negative
// or missing durations render as 0:00.
func formatVoiceDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	totalSeconds := ms / 1000
	return fmt.Sprintf("%d:%02d", totalSeconds/60, totalSeconds%60)
}
