// Package validation provides upload validation utilities.
package validation

import (
	"errors"
	"io"
	"net/http"
)

// ErrDisallowedFileType is returned when a file type is not in the allowlist.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedMIMETypes is the allowlist of lecture media accepted for processing.
// Only container formats ffmpeg can demux an audio stream from.
var allowedMIMETypes = map[string]bool{
	"video/mp4":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"video/x-matroska": true,
	"video/avi":        true,
	"audio/mpeg":       true,
	"audio/ogg":        true,
	"application/ogg":  true,
	"audio/wav":        true,
	"audio/wave":       true,
	"audio/x-wav":      true,
	"audio/flac":       true,
	"audio/x-flac":     true,
}

// magicBytesBufferSize is the number of bytes to read for content type detection.
const magicBytesBufferSize = 512

// ValidateMagicBytes validates a file's content type by reading its magic bytes.
// It uses http.DetectContentType for standard detection and includes custom
// detection for formats not well-supported by the standard library.
//
// The function reads up to 512 bytes from the reader, detects the MIME type,
// and resets the reader position to the beginning.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := reader.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	if n == 0 {
		return "application/octet-stream", false, nil
	}

	buf = buf[:n]

	mime = detectCustomMagicBytes(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}

	allowed = allowedMIMETypes[mime]

	return mime, allowed, nil
}

// detectCustomMagicBytes handles detection of file types that http.DetectContentType
// may not recognize correctly.
func detectCustomMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// WebM/Matroska: EBML header (0x1A 0x45 0xDF 0xA3). Both share the EBML
	// container; webm is the allowlisted answer so demuxing works either way.
	if buf[0] == 0x1A && buf[1] == 0x45 && buf[2] == 0xDF && buf[3] == 0xA3 {
		return "video/webm"
	}

	// FLAC: starts with "fLaC"
	if buf[0] == 'f' && buf[1] == 'L' && buf[2] == 'a' && buf[3] == 'C' {
		return "audio/flac"
	}

	// MP3 without ID3: MPEG Audio Layer III frame sync
	if len(buf) >= 2 && buf[0] == 0xFF {
		switch buf[1] & 0xFE {
		case 0xFA, 0xF2:
			return "audio/mpeg"
		}
	}

	// ID3 tag (common for MP3): starts with "ID3"
	if buf[0] == 'I' && buf[1] == 'D' && buf[2] == '3' {
		return "audio/mpeg"
	}

	// MP4/QuickTime: ftyp box at offset 4 (bytes 4-7: "ftyp")
	// The format is: [4 bytes size][4 bytes "ftyp"][brand...]
	if len(buf) >= 12 {
		if buf[4] == 'f' && buf[5] == 't' && buf[6] == 'y' && buf[7] == 'p' {
			brand := string(buf[8:12])
			switch brand {
			case "qt  ":
				return "video/quicktime"
			default:
				// isom, iso2, mp41, mp42, avc1, M4V and friends
				return "video/mp4"
			}
		}
	}

	return ""
}
