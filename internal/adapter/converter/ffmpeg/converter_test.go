package ffmpeg

import (
	"context"
	"errors"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{
			name:    "valid path",
			path:    "/tmp/video.mp4",
			wantErr: nil,
		},
		{
			name:    "valid path with spaces",
			path:    "/tmp/my video.mp4",
			wantErr: nil,
		},
		{
			name:    "valid relative path",
			path:    "video.mp4",
			wantErr: nil,
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: ErrEmptyPath,
		},
		{
			name:    "path with null byte",
			path:    "/tmp/\x00video.mp4",
			wantErr: ErrInvalidPath,
		},
		{
			name:    "path with traversal",
			path:    "/tmp/../etc/passwd",
			wantErr: ErrInvalidPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("validatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestExtractor_PathValidation(t *testing.T) {
	e := &Extractor{}
	ctx := context.Background()

	if _, err := e.ExtractAudio(ctx, "", "/tmp", "abc"); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("ExtractAudio with empty path = %v, want ErrEmptyPath", err)
	}
	if _, err := e.Probe(ctx, ""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("Probe with empty path = %v, want ErrEmptyPath", err)
	}
	if err := e.EmbedSubtitles(ctx, "/tmp/a.mp4", "/tmp/\x00a.srt", "/tmp/out.mp4"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("EmbedSubtitles with null byte = %v, want ErrInvalidPath", err)
	}
}

func TestStderrTail(t *testing.T) {
	short := "stream not found"
	if got := stderrTail(short + "\n"); got != short {
		t.Errorf("stderrTail(short) = %q", got)
	}

	long := make([]byte, stderrTailLen*2)
	for i := range long {
		long[i] = 'x'
	}
	if got := stderrTail(string(long)); len(got) != stderrTailLen {
		t.Errorf("stderrTail(long) length = %d, want %d", len(got), stderrTailLen)
	}
}
