package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
)

// stderrTailLen bounds how much ffmpeg stderr ends up in error messages.
const stderrTailLen = 400

type Extractor struct{}

func NewExtractor() port.AudioExtractor {
	return &Extractor{}
}

// ExtractAudio writes a 16 kHz mono PCM wav next to the given output
// directory, the format whisper models expect.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath, outputDir, id string) (string, error) {
	if err := validatePath(videoPath); err != nil {
		return "", err
	}
	audioPath := filepath.Join(outputDir, id+".wav")

	args := []string{
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y", audioPath,
	}
	if err := runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	return audioPath, nil
}

// EmbedSubtitles muxes a subtitle track into the video without re-encoding
// either the video or audio streams.
func (e *Extractor) EmbedSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error {
	for _, p := range []string{videoPath, subtitlePath, outputPath} {
		if err := validatePath(p); err != nil {
			return err
		}
	}

	args := []string{
		"-i", videoPath,
		"-i", subtitlePath,
		"-c:v", "copy",
		"-c:a", "copy",
		"-c:s", "mov_text",
		"-metadata:s:s:0", "language=eng",
		"-y", outputPath,
	}
	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("embed subtitles: %w", err)
	}
	return nil
}

func (e *Extractor) Probe(ctx context.Context, path string) (*domain.ProbeResult, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	cmd := exec.CommandContext(ctx, "ffprobe", args...)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe domain.ProbeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &probe, nil
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}

func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLen {
		return s[len(s)-stderrTailLen:]
	}
	return s
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsAny(path, "\x00") || strings.Contains(path, "..") {
		return ErrInvalidPath
	}
	return nil
}

var _ port.AudioExtractor = (*Extractor)(nil)
