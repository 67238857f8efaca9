package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/avela/lectern/internal/adapter/http/validation"
	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/infrastructure/logger"
)

type JobService interface {
	Submit(ctx context.Context, originalName string, file *os.File, opts domain.ProcessOptions) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context) ([]*domain.Job, error)
	AnalyzeText(ctx context.Context, text string) (*domain.AnalysisResult, error)
	Transcribe(ctx context.Context, originalName, mediaPath, model, language string) (*domain.Transcript, error)
}

// Backend is the analysis backend health probe.
type Backend interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	jobSvc    JobService
	backend   Backend
	maxSizeMB int
}

func NewHandlers(jobSvc JobService, backend Backend, maxSizeMB int) *Handlers {
	return &Handlers{
		jobSvc:    jobSvc,
		backend:   backend,
		maxSizeMB: maxSizeMB,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// receiveUpload copies the multipart "video" field to a temp file and checks
// its magic bytes. On failure it writes the error response itself and reports
// !ok; on success the caller owns the temp file.
func (h *Handlers) receiveUpload(w http.ResponseWriter, r *http.Request) (tmpFile *os.File, originalName string, ok bool) {
	maxBytes := int64(h.maxSizeMB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		errorJSON(w, http.StatusRequestEntityTooLarge, "file too large")
		return nil, "", false
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "no video file provided")
		return nil, "", false
	}
	defer file.Close() //nolint:errcheck

	tmpFile, err = os.CreateTemp("", "lectern-upload-*.tmp")
	if err != nil {
		logger.Error.Printf("upload temp file: %v", err)
		errorJSON(w, http.StatusInternalServerError, "failed to process upload")
		return nil, "", false
	}

	if _, err := io.Copy(tmpFile, file); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		logger.Error.Printf("upload copy: %v", err)
		errorJSON(w, http.StatusInternalServerError, "failed to save upload")
		return nil, "", false
	}

	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		logger.Error.Printf("upload rewind: %v", err)
		errorJSON(w, http.StatusInternalServerError, "failed to process upload")
		return nil, "", false
	}

	mime, allowed, err := validation.ValidateMagicBytes(tmpFile)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		logger.Error.Printf("upload magic bytes: %v", err)
		errorJSON(w, http.StatusInternalServerError, "failed to inspect upload")
		return nil, "", false
	}
	if !allowed {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		logger.Warn.Printf("rejected upload %s: detected type %s", logger.SanitizeForLog(header.Filename), mime)
		errorJSON(w, http.StatusUnsupportedMediaType, "unsupported media type: "+mime)
		return nil, "", false
	}

	return tmpFile, header.Filename, true
}

// Process accepts a media upload and enqueues a processing job. The response
// is 202 with the job ID; progress is polled via Status or streamed via SSE.
func (h *Handlers) Process() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpFile, originalName, ok := h.receiveUpload(w, r)
		if !ok {
			return
		}
		defer tmpFile.Close() //nolint:errcheck

		opts, err := parseOptions(r)
		if err != nil {
			os.Remove(tmpFile.Name())
			errorJSON(w, http.StatusBadRequest, err.Error())
			return
		}

		job, err := h.jobSvc.Submit(r.Context(), originalName, tmpFile, opts)
		if err != nil {
			os.Remove(tmpFile.Name())
			logger.Error.Printf("submit %s: %v", logger.SanitizeForLog(originalName), err)
			errorJSON(w, http.StatusInternalServerError, "failed to enqueue job")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

// Transcribe runs the extraction and speech-to-text stages on an upload
// synchronously and returns the transcript, without creating a job.
func (h *Handlers) Transcribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tmpFile, originalName, ok := h.receiveUpload(w, r)
		if !ok {
			return
		}
		defer os.Remove(tmpFile.Name())
		defer tmpFile.Close() //nolint:errcheck

		model := domain.DefaultOptions().WhisperModel
		if v := r.FormValue("whisper_model"); v != "" {
			if !domain.WhisperModels[v] {
				errorJSON(w, http.StatusBadRequest, "unknown whisper model: "+v)
				return
			}
			model = v
		}

		transcript, err := h.jobSvc.Transcribe(r.Context(), originalName, tmpFile.Name(), model, r.FormValue("language"))
		if err != nil {
			kind := domain.Classify(err)
			logger.Error.Printf("transcribe %s: kind=%s err=%v", logger.SanitizeForLog(originalName), kind, err)
			errorJSON(w, analyzeErrorStatus(kind), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, transcript)
	}
}

// parseOptions reads the processing options from the multipart form. Absent
// fields fall back to the defaults.
func parseOptions(r *http.Request) (domain.ProcessOptions, error) {
	opts := domain.DefaultOptions()

	if model := r.FormValue("whisper_model"); model != "" {
		if !domain.WhisperModels[model] {
			return opts, errors.New("unknown whisper model: " + model)
		}
		opts.WhisperModel = model
	}

	opts.Language = r.FormValue("language")

	if v := r.FormValue("generate_subtitles"); v != "" {
		opts.GenerateSubtitles = parseBool(v)
	}
	if v := r.FormValue("generate_word_doc"); v != "" {
		opts.GenerateDocument = parseBool(v)
	}
	if v := r.FormValue("embed_subtitles"); v != "" {
		opts.EmbedSubtitles = parseBool(v)
	}

	if opts.EmbedSubtitles && !opts.GenerateSubtitles {
		return opts, errors.New("embed_subtitles requires generate_subtitles")
	}

	return opts, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Status reports the current state of a job.
func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		job, err := h.jobSvc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				errorJSON(w, http.StatusNotFound, "job not found")
				return
			}
			logger.Error.Printf("status %s: %v", logger.SanitizeForLog(id), err)
			errorJSON(w, http.StatusInternalServerError, "failed to load job")
			return
		}

		resp := map[string]any{
			"job_id":   job.ID,
			"status":   job.Status,
			"progress": job.Progress,
		}
		if job.Status == domain.StatusError {
			resp["error_kind"] = job.ErrorKind
			resp["error"] = job.ErrorMessage
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// Result returns the full analysis result of a completed job.
func (h *Handlers) Result() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		job, err := h.jobSvc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				errorJSON(w, http.StatusNotFound, "job not found")
				return
			}
			logger.Error.Printf("result %s: %v", logger.SanitizeForLog(id), err)
			errorJSON(w, http.StatusInternalServerError, "failed to load job")
			return
		}

		switch job.Status {
		case domain.StatusComplete:
			writeJSON(w, http.StatusOK, job.Result)
		case domain.StatusError:
			errorJSON(w, http.StatusBadRequest, "job failed: "+job.ErrorMessage)
		default:
			errorJSON(w, http.StatusBadRequest, "job not complete")
		}
	}
}

// Download streams one generated artifact of a completed job.
func (h *Handlers) Download() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		kind := domain.ArtifactKind(r.PathValue("kind"))

		job, err := h.jobSvc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				errorJSON(w, http.StatusNotFound, "job not found")
				return
			}
			logger.Error.Printf("download %s: %v", logger.SanitizeForLog(id), err)
			errorJSON(w, http.StatusInternalServerError, "failed to load job")
			return
		}

		if job.Status != domain.StatusComplete || job.Result == nil {
			errorJSON(w, http.StatusBadRequest, "job not complete")
			return
		}

		path, ok := job.Result.Files[kind]
		if !ok || path == "" {
			errorJSON(w, http.StatusNotFound, "artifact not available")
			return
		}

		w.Header().Set("Content-Type", artifactMIMEType(kind))
		w.Header().Set("Content-Disposition", validation.ContentDisposition(artifactFilename(job.OriginalName, kind)))
		http.ServeFile(w, r, path)
	}
}

func artifactMIMEType(kind domain.ArtifactKind) string {
	switch kind {
	case domain.ArtifactSubtitles:
		return "application/x-subrip"
	case domain.ArtifactWorkbook:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case domain.ArtifactJSON:
		return "application/json"
	case domain.ArtifactVideo:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

func artifactFilename(originalName string, kind domain.ArtifactKind) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	switch kind {
	case domain.ArtifactSubtitles:
		return base + ".srt"
	case domain.ArtifactWorkbook:
		return base + "_analysis.xlsx"
	case domain.ArtifactJSON:
		return base + "_analysis.json"
	case domain.ArtifactVideo:
		return base + "_with_subtitles.mp4"
	default:
		return originalName
	}
}

// Analyze runs the analysis stage directly on posted text, without the media
// pipeline.
func (h *Handlers) Analyze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 10<<20)).Decode(&payload); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if payload.Text == "" {
			errorJSON(w, http.StatusBadRequest, "no text provided")
			return
		}

		result, err := h.jobSvc.AnalyzeText(r.Context(), payload.Text)
		if err != nil {
			kind := domain.Classify(err)
			logger.Error.Printf("analyze: kind=%s err=%v", kind, err)
			errorJSON(w, analyzeErrorStatus(kind), err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// analyzeErrorStatus maps a failure kind to the HTTP status for the direct
// analysis endpoint.
func analyzeErrorStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInput:
		return http.StatusBadRequest
	case domain.KindConnectivity:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindSchema, domain.KindValidation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Jobs lists all known jobs, newest first.
func (h *Handlers) Jobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := h.jobSvc.List(r.Context())
		if err != nil {
			logger.Error.Printf("list jobs: %v", err)
			errorJSON(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		if jobs == nil {
			jobs = []*domain.Job{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

// Health reports service liveness and whether the analysis backend answers.
func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok", "backend": "ok"}
		if err := h.backend.Ping(r.Context()); err != nil {
			resp["backend"] = "unreachable"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
