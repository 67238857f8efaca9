package port

import (
	"context"

	"github.com/avela/lectern/internal/domain"
)

// AudioExtractor pulls a speech-recognition-ready audio track out of a video
// file and can mux subtitles back into one.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, outputDir, id string) (audioPath string, err error)
	Probe(ctx context.Context, path string) (*domain.ProbeResult, error)
	EmbedSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error
}
