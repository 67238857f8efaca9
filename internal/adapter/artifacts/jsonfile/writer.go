// Package jsonfile persists a job's full analysis result as a JSON document.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/port"
)

type Writer struct{}

func NewWriter() port.ResultWriter {
	return &Writer{}
}

// WriteResult writes through a temp file and renames into place so a crash
// mid-write never leaves a truncated document behind.
func (w *Writer) WriteResult(result *domain.JobResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

var _ port.ResultWriter = (*Writer)(nil)
