package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusExtracting   JobStatus = "extracting_audio"
	StatusTranscribing JobStatus = "transcribing"
	StatusAnalyzing    JobStatus = "analyzing"
	StatusGenerating   JobStatus = "generating_artifacts"
	StatusComplete     JobStatus = "complete"
	StatusError        JobStatus = "error"
)

// IsTerminal reports whether a job in this status can never change again.
func (s JobStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// IsProcessing reports whether the status reflects an in-flight stage.
func (s JobStatus) IsProcessing() bool {
	switch s {
	case StatusExtracting, StatusTranscribing, StatusAnalyzing, StatusGenerating:
		return true
	default:
		return false
	}
}

// WhisperModels is the set of accepted speech-to-text model sizes.
var WhisperModels = map[string]bool{
	"tiny":   true,
	"base":   true,
	"small":  true,
	"medium": true,
	"large":  true,
}

// ProcessOptions selects which stages run and how, per submission.
type ProcessOptions struct {
	WhisperModel      string `json:"whisper_model"`
	Language          string `json:"language,omitempty"`
	GenerateSubtitles bool   `json:"generate_subtitles"`
	GenerateDocument  bool   `json:"generate_word_doc"`
	EmbedSubtitles    bool   `json:"embed_subtitles"`
}

func DefaultOptions() ProcessOptions {
	return ProcessOptions{
		WhisperModel:      "base",
		GenerateSubtitles: true,
		GenerateDocument:  true,
		EmbedSubtitles:    false,
	}
}

// Job is one tracked unit of pipeline work. It is created queued with zero
// progress and only ever mutated through the registry's atomic update, so a
// terminal job can never be resurrected and progress never moves backward
// while the job is healthy.
type Job struct {
	ID           string         `json:"id"`
	OriginalName string         `json:"original_name"`
	VideoPath    string         `json:"-"`
	Options      ProcessOptions `json:"options"`
	Status       JobStatus      `json:"status"`
	Progress     int            `json:"progress"`
	Result       *JobResult     `json:"result,omitempty"`
	ErrorKind    ErrorKind      `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func NewJob(originalName, videoPath string, opts ProcessOptions) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		VideoPath:    videoPath,
		Options:      opts,
		Status:       StatusQueued,
		Progress:     0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetComplete records the final result. Terminal.
func (j *Job) SetComplete(result *JobResult) {
	j.Status = StatusComplete
	j.Progress = 100
	j.Result = result
}

// SetFailed records a classified failure. Terminal. Progress is left where the
// pipeline last reported it.
func (j *Job) SetFailed(kind ErrorKind, message string) {
	j.Status = StatusError
	j.ErrorKind = kind
	j.ErrorMessage = message
}
