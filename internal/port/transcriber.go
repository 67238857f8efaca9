package port

import (
	"context"

	"github.com/avela/lectern/internal/domain"
)

// Transcriber converts an audio file into timed text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, model, language string) (*domain.Transcript, error)
}
