package port

import "github.com/avela/lectern/internal/domain"

type SubtitleWriter interface {
	WriteSubtitles(segments []domain.Segment, path string) error
}

type DocumentWriter interface {
	WriteWorkbook(result *domain.JobResult, path string) error
}

type ResultWriter interface {
	WriteResult(result *domain.JobResult, path string) error
}
