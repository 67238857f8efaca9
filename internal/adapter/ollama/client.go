// Package ollama implements the analysis backend client against a local
// Ollama server's generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/avela/lectern/internal/analysis"
	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/infrastructure/logger"
)

const (
	defaultBaseTimeout = 120 * time.Second
	defaultMaxRetries  = 3
	timeoutMultiplier  = 1.5

	temperature = 0.3
	topP        = 0.9
	numPredict  = 4096
	numCtx      = 8192
)

type Client struct {
	baseURL     string
	model       string
	httpc       *http.Client
	baseTimeout time.Duration
	maxRetries  int
}

type Option func(*Client)

func WithBaseTimeout(d time.Duration) Option {
	return func(c *Client) { c.baseTimeout = d }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		model:       model,
		httpc:       &http.Client{},
		baseTimeout: defaultBaseTimeout,
		maxRetries:  defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
	NumCtx      int     `json:"num_ctx"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Analyze sends the transcript to the model and returns the validated result.
// Timeouts escalate across retries; a refused connection fails immediately
// because retrying an unreachable server cannot succeed.
func (c *Client) Analyze(ctx context.Context, transcript string) (*domain.AnalysisResult, error) {
	if domain.NonWhitespaceLen(transcript) < domain.MinTranscriptChars {
		return nil, &domain.InputError{
			Reason: fmt.Sprintf("transcript too short for analysis (need at least %d non-whitespace characters)", domain.MinTranscriptChars),
		}
	}

	prompt := buildPrompt(transcript)

	var raw string
	var lastTimeout time.Duration
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		lastTimeout = attemptTimeout(c.baseTimeout, attempt)
		attempts++

		var err error
		raw, err = c.generate(ctx, prompt, lastTimeout)
		if err == nil {
			break
		}

		switch {
		case isConnRefused(err):
			return nil, &domain.ConnectivityError{Err: err}
		case isTimeout(err):
			if attempt == c.maxRetries {
				return nil, &domain.TimeoutError{Attempts: attempts, FinalTimeout: lastTimeout}
			}
			logger.Warn.Printf("analysis attempt %d timed out after %s, retrying", attempts, lastTimeout)
		default:
			return nil, &domain.BackendError{Err: err}
		}
	}

	return analysis.ParseAndValidate(raw)
}

// attemptTimeout is the deadline for a given zero-based attempt number:
// base, 1.5x, 2.25x, 3.375x.
func attemptTimeout(base time.Duration, attempt int) time.Duration {
	return time.Duration(float64(base) * math.Pow(timeoutMultiplier, float64(attempt)))
}

func (c *Client) generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: temperature,
			TopP:        topP,
			NumPredict:  numPredict,
			NumCtx:      numCtx,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generate returned status %d: %s", resp.StatusCode, msg)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return decoded.Response, nil
}

// Ping checks that the server answers at all. Used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server returned status %d", resp.StatusCode)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
