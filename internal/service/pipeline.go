package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/infrastructure/logger"
	"github.com/avela/lectern/internal/port"
)

// Progress checkpoints at stage boundaries.
const (
	progressExtracting   = 10
	progressTranscribing = 30
	progressAnalyzing    = 60
	progressGenerating   = 90
)

type EventPublisher interface {
	Publish(jobID string, event Event)
}

// Pipeline runs the stages of one job: extract audio, transcribe, analyze,
// write artifacts. All job mutations go through the registry so lifecycle
// rules are enforced in one place.
type Pipeline struct {
	registry    port.JobRegistry
	extractor   port.AudioExtractor
	transcriber port.Transcriber
	analyzer    port.Analyzer
	subtitles   port.SubtitleWriter
	documents   port.DocumentWriter
	results     port.ResultWriter
	events      EventPublisher
	workDir     string
	outputDir   string
}

type PipelineDeps struct {
	Registry    port.JobRegistry
	Extractor   port.AudioExtractor
	Transcriber port.Transcriber
	Analyzer    port.Analyzer
	Subtitles   port.SubtitleWriter
	Documents   port.DocumentWriter
	Results     port.ResultWriter
	Events      EventPublisher
	WorkDir     string
	OutputDir   string
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		registry:    deps.Registry,
		extractor:   deps.Extractor,
		transcriber: deps.Transcriber,
		analyzer:    deps.Analyzer,
		subtitles:   deps.Subtitles,
		documents:   deps.Documents,
		results:     deps.Results,
		events:      deps.Events,
		workDir:     deps.WorkDir,
		outputDir:   deps.OutputDir,
	}
}

// Run executes the full pipeline for an already-claimed job. Stage failures
// never escape: they are classified, written to the job record, and the job
// moves to its terminal error state.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) {
	result, err := p.process(ctx, job)
	if err != nil {
		kind := domain.Classify(err)
		logger.Error.Printf("job %s failed (%s): %v", job.ID, kind, err)
		p.fail(ctx, job.ID, kind, err)
		return
	}

	updated, err := p.registry.Update(ctx, job.ID, func(j *domain.Job) error {
		j.SetComplete(result)
		return nil
	})
	if err != nil {
		logger.Error.Printf("job %s: could not record completion: %v", job.ID, err)
		return
	}
	p.publish(updated)
	logger.Info.Printf("job %s complete", job.ID)
}

func (p *Pipeline) process(ctx context.Context, job *domain.Job) (*domain.JobResult, error) {
	audioPath, err := p.extractAudio(ctx, job)
	if err != nil {
		return nil, err
	}
	defer os.Remove(audioPath)

	transcript, err := p.transcribe(ctx, job, audioPath)
	if err != nil {
		return nil, err
	}

	analysis, err := p.analyze(ctx, job, transcript.Text)
	if err != nil {
		return nil, err
	}

	result := &domain.JobResult{
		VideoFile:      job.OriginalName,
		Language:       transcript.Language,
		Transcription:  transcript.Text,
		AnalysisResult: *analysis,
	}
	if err := p.writeArtifacts(ctx, job, transcript, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) extractAudio(ctx context.Context, job *domain.Job) (string, error) {
	// The claim already moved the job to the extracting stage; this publishes
	// the transition for live subscribers.
	if err := p.advance(ctx, job.ID, domain.StatusExtracting, progressExtracting); err != nil {
		return "", err
	}

	probe, err := p.extractor.Probe(ctx, job.VideoPath)
	if err != nil {
		return "", &domain.InputError{Reason: fmt.Sprintf("unreadable media file: %v", err)}
	}
	if probe.AudioStream() == nil {
		return "", &domain.InputError{Reason: "media file has no audio stream"}
	}
	if job.Options.EmbedSubtitles && probe.VideoStream() == nil {
		return "", &domain.InputError{Reason: "cannot embed subtitles: media file has no video stream"}
	}
	logger.Info.Printf("job %s: media duration %s", job.ID, domain.FormatDuration(domain.ParseDuration(probe.Format.Duration)))

	audioPath, err := p.extractor.ExtractAudio(ctx, job.VideoPath, p.workDir, job.ID)
	if err != nil {
		return "", fmt.Errorf("audio extraction: %w", err)
	}
	return audioPath, nil
}

func (p *Pipeline) transcribe(ctx context.Context, job *domain.Job, audioPath string) (*domain.Transcript, error) {
	if err := p.advance(ctx, job.ID, domain.StatusTranscribing, progressTranscribing); err != nil {
		return nil, err
	}

	transcript, err := p.transcriber.Transcribe(ctx, audioPath, job.Options.WhisperModel, job.Options.Language)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	if strings.TrimSpace(transcript.Text) == "" {
		return nil, &domain.InputError{Reason: "transcription produced no text (is the audio silent?)"}
	}
	return transcript, nil
}

func (p *Pipeline) analyze(ctx context.Context, job *domain.Job, text string) (*domain.AnalysisResult, error) {
	if err := p.advance(ctx, job.ID, domain.StatusAnalyzing, progressAnalyzing); err != nil {
		return nil, err
	}
	return p.analyzer.Analyze(ctx, text)
}

func (p *Pipeline) writeArtifacts(ctx context.Context, job *domain.Job, transcript *domain.Transcript, result *domain.JobResult) error {
	if err := p.advance(ctx, job.ID, domain.StatusGenerating, progressGenerating); err != nil {
		return err
	}

	files := make(map[domain.ArtifactKind]string)

	jsonPath := filepath.Join(p.outputDir, job.ID+"_analysis.json")
	if err := p.results.WriteResult(result, jsonPath); err != nil {
		return &domain.ArtifactError{Kind: domain.ArtifactJSON, Err: err}
	}
	files[domain.ArtifactJSON] = jsonPath

	var srtPath string
	if job.Options.GenerateSubtitles {
		srtPath = filepath.Join(p.outputDir, job.ID+"_subtitles.srt")
		if err := p.subtitles.WriteSubtitles(transcript.Segments, srtPath); err != nil {
			return &domain.ArtifactError{Kind: domain.ArtifactSubtitles, Err: err}
		}
		files[domain.ArtifactSubtitles] = srtPath
	}

	if job.Options.GenerateDocument {
		workbookPath := filepath.Join(p.outputDir, job.ID+"_analysis.xlsx")
		if err := p.documents.WriteWorkbook(result, workbookPath); err != nil {
			return &domain.ArtifactError{Kind: domain.ArtifactWorkbook, Err: err}
		}
		files[domain.ArtifactWorkbook] = workbookPath
	}

	if job.Options.EmbedSubtitles && srtPath != "" {
		videoPath := filepath.Join(p.outputDir, job.ID+"_with_subtitles.mp4")
		if err := p.extractor.EmbedSubtitles(ctx, job.VideoPath, srtPath, videoPath); err != nil {
			return &domain.ArtifactError{Kind: domain.ArtifactVideo, Err: err}
		}
		files[domain.ArtifactVideo] = videoPath
	}

	result.Files = files
	return nil
}

func (p *Pipeline) advance(ctx context.Context, jobID string, status domain.JobStatus, progress int) error {
	updated, err := p.registry.Update(ctx, jobID, func(j *domain.Job) error {
		j.Status = status
		j.Progress = progress
		return nil
	})
	if err != nil {
		return fmt.Errorf("advance to %s: %w", status, err)
	}
	p.publish(updated)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, jobID string, kind domain.ErrorKind, cause error) {
	updated, err := p.registry.Update(ctx, jobID, func(j *domain.Job) error {
		j.SetFailed(kind, cause.Error())
		return nil
	})
	if err != nil {
		logger.Error.Printf("job %s: could not record failure: %v", jobID, err)
		return
	}
	p.publish(updated)
}

func (p *Pipeline) publish(job *domain.Job) {
	if p.events == nil {
		return
	}
	p.events.Publish(job.ID, Event{
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.ErrorMessage,
	})
}
