// Package srt writes SubRip subtitle files from transcript segments.
package srt

import (
	"fmt"
	"os"
	"strings"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/port"
)

type Writer struct{}

func NewWriter() port.SubtitleWriter {
	return &Writer{}
}

func (w *Writer) WriteSubtitles(segments []domain.Segment, path string) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to write")
	}

	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatTimestamp(seg.Start), formatTimestamp(seg.End))
		b.WriteString(strings.TrimSpace(seg.Text))
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}

// formatTimestamp renders seconds as the SubRip HH:MM:SS,mmm form.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int64(seconds*1000 + 0.5)
	h := millis / 3600000
	m := (millis % 3600000) / 60000
	s := (millis % 60000) / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

var _ port.SubtitleWriter = (*Writer)(nil)
