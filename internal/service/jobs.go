package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/infrastructure/logger"
	"github.com/avela/lectern/internal/port"
)

// JobService owns job submission and lookup. Pipeline execution is handled by
// the worker pool; submission only persists the upload and enqueues the job.
// It also serves the synchronous single-stage operations (analyze a pasted
// transcript, transcribe an upload without queueing a job).
type JobService struct {
	registry    port.JobRegistry
	analyzer    port.Analyzer
	extractor   port.AudioExtractor
	transcriber port.Transcriber
	uploadDir   string
	workDir     string
}

func NewJobService(registry port.JobRegistry, analyzer port.Analyzer, extractor port.AudioExtractor, transcriber port.Transcriber, dataDir string) *JobService {
	return &JobService{
		registry:    registry,
		analyzer:    analyzer,
		extractor:   extractor,
		transcriber: transcriber,
		uploadDir:   filepath.Join(dataDir, "uploads"),
		workDir:     filepath.Join(dataDir, "work"),
	}
}

// Submit moves the uploaded temp file into the upload directory and enqueues
// a job for it. The caller's temp file is consumed on success.
func (s *JobService) Submit(ctx context.Context, originalName string, file *os.File, opts domain.ProcessOptions) (*domain.Job, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		logger.Error.Printf("failed to create upload directory: %v", err)
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	job := domain.NewJob(originalName, "", opts)
	uploadPath := filepath.Join(s.uploadDir, job.ID+filepath.Ext(originalName))
	if err := os.Rename(file.Name(), uploadPath); err != nil {
		logger.Error.Printf("failed to save upload %s: %v", logger.SanitizeForLog(originalName), err)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}
	job.VideoPath = uploadPath

	if err := s.registry.Create(ctx, job); err != nil {
		os.Remove(uploadPath)
		logger.Error.Printf("failed to enqueue job %s: %v", job.ID, err)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	logger.Info.Printf("job submitted: id=%s, file=%s, model=%s", job.ID, logger.SanitizeForLog(originalName), opts.WhisperModel)
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.registry.Get(ctx, id)
}

func (s *JobService) List(ctx context.Context) ([]*domain.Job, error) {
	return s.registry.List(ctx)
}

// AnalyzeText runs the analysis stage directly on caller-provided text,
// bypassing the media pipeline.
func (s *JobService) AnalyzeText(ctx context.Context, text string) (*domain.AnalysisResult, error) {
	return s.analyzer.Analyze(ctx, text)
}

// Transcribe extracts audio from an uploaded media file and runs it through
// speech-to-text synchronously, without enqueueing a job. The caller owns the
// media file; the intermediate audio track is removed before returning.
func (s *JobService) Transcribe(ctx context.Context, originalName, mediaPath, model, language string) (*domain.Transcript, error) {
	probe, err := s.extractor.Probe(ctx, mediaPath)
	if err != nil {
		return nil, &domain.InputError{Reason: fmt.Sprintf("unreadable media file: %v", err)}
	}
	if probe.AudioStream() == nil {
		return nil, &domain.InputError{Reason: "media file has no audio stream"}
	}

	audioPath, err := s.extractor.ExtractAudio(ctx, mediaPath, s.workDir, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("audio extraction: %w", err)
	}
	defer os.Remove(audioPath)

	transcript, err := s.transcriber.Transcribe(ctx, audioPath, model, language)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, &domain.InputError{Reason: "transcription produced no text (is the audio silent?)"}
	}

	logger.Info.Printf("transcribed %s: language=%s, %d segments", logger.SanitizeForLog(originalName), transcript.Language, len(transcript.Segments))
	return transcript, nil
}
