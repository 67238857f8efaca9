// Package whisperd talks to a whisper transcription daemon over HTTP.
package whisperd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/infrastructure/logger"
)

const defaultTimeout = 10 * time.Minute

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type transcribeResponse struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []domain.Segment `json:"segments"`
}

// Transcribe uploads the audio file and returns the timed transcript.
// Transient server errors are retried with exponential backoff; client errors
// fail immediately since resending the same file cannot fix them.
func (c *Client) Transcribe(ctx context.Context, audioPath, model, language string) (*domain.Transcript, error) {
	var result transcribeResponse

	operation := func() error {
		body, contentType, err := c.buildRequestBody(audioPath, model, language)
		if err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcribe", body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode >= 500:
			logger.Warn.Printf("transcription server error %d, retrying", resp.StatusCode)
			return fmt.Errorf("transcription server error %d: %s", resp.StatusCode, payload)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("transcription rejected with status %d: %s", resp.StatusCode, payload))
		}

		if err := json.Unmarshal(payload, &result); err != nil {
			return backoff.Permanent(fmt.Errorf("decode transcription response: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	return &domain.Transcript{
		Text:     result.Text,
		Language: result.Language,
		Segments: result.Segments,
	}, nil
}

func (c *Client) buildRequestBody(audioPath, model, language string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio file: %w", err)
	}

	if err := w.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
