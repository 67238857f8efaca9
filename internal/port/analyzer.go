package port

import (
	"context"

	"github.com/avela/lectern/internal/domain"
)

// Analyzer turns a transcript into a structured study aid.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (*domain.AnalysisResult, error)
}
