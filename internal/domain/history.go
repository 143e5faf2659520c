package domain

import (
	"time"

	"github.com/google/uuid"
)

// EditHistoryItem records one completed edit. Items are handed to a
// HistorySink as they happen and are never stored by this service.
type EditHistoryItem struct {
	ID             string `json:"id"`
	OriginalImage  string `json:"original_image"`
	GeneratedImage string `json:"generated_image"`
	Prompt         string `json:"prompt"`
	Timestamp      int64  `json:"timestamp"`
}

// NewEditHistoryItem stamps a fresh id and the unix-millis timestamp of at.
func NewEditHistoryItem(original, generated, prompt string, at time.Time) EditHistoryItem {
	return EditHistoryItem{
		ID:             uuid.NewString(),
		OriginalImage:  original,
		GeneratedImage: generated,
		Prompt:         prompt,
		Timestamp:      at.UnixMilli(),
	}
}

// HistorySink receives completed edits.
type HistorySink interface {
	Record(item EditHistoryItem)
}

// HistorySinkFunc adapts a function to HistorySink.
type HistorySinkFunc func(item EditHistoryItem)

func (f HistorySinkFunc) Record(item EditHistoryItem) { f(item) }
