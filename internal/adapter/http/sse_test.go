package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/service"
)

func TestSSEWrite_MultiLineData(t *testing.T) {
	rec := httptest.NewRecorder()

	sseWrite(rec, "progress", "line1\nline2")

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, "data: line1\n")
	assert.Contains(t, body, "data: line2\n")
	assert.True(t, strings.HasSuffix(body, "\n\n"))
}

func TestSendProgress_MarshalsEvent(t *testing.T) {
	rec := httptest.NewRecorder()

	sendProgress(rec, service.Event{Status: domain.StatusTranscribing, Progress: 30})

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, `"status":"transcribing"`)
	assert.Contains(t, body, `"progress":30`)
}

func TestJobEvent_CarriesErrorMessage(t *testing.T) {
	job := &domain.Job{Status: domain.StatusError, Progress: 60, ErrorMessage: "boom"}

	event := jobEvent(job)

	assert.Equal(t, domain.StatusError, event.Status)
	assert.Equal(t, 60, event.Progress)
	assert.Equal(t, "boom", event.Message)
}

func TestEvents_UnknownJob(t *testing.T) {
	h := NewSSEHandler(service.NewEventBus(), &fakeJobService{jobs: map[string]*domain.Job{}})

	req := newPathValueRequest(t, http.MethodGet, "/api/events/nope", "id", "nope")
	rec := httptest.NewRecorder()

	h.Events()(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_TerminalJobSendsFinalState(t *testing.T) {
	job := &domain.Job{ID: "j1", Status: domain.StatusComplete, Progress: 100}
	h := NewSSEHandler(service.NewEventBus(), &fakeJobService{jobs: map[string]*domain.Job{"j1": job}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := newPathValueRequest(t, http.MethodGet, "/api/events/j1", "id", "j1").WithContext(ctx)
	rec := httptest.NewRecorder()

	h.Events()(rec, req)

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, `"status":"complete"`)
	assert.Contains(t, body, `"progress":100`)
}

// sequencedJobService serves a different job snapshot on each Get call, so a
// test can change the job state between the handler's lookups.
type sequencedJobService struct {
	fakeJobService
	mu        sync.Mutex
	snapshots []*domain.Job
	calls     int
}

func (s *sequencedJobService) Get(_ context.Context, _ string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.snapshots) {
		i = len(s.snapshots) - 1
	}
	s.calls++
	return s.snapshots[i], nil
}

func TestEvents_JobFinishingBeforeSubscribeStillSendsFinalState(t *testing.T) {
	// The job completes between the initial snapshot and the subscription, so
	// its terminal event is published before anyone listens. The handler must
	// still deliver the final state.
	svc := &sequencedJobService{snapshots: []*domain.Job{
		{ID: "j1", Status: domain.StatusAnalyzing, Progress: 60},
		{ID: "j1", Status: domain.StatusComplete, Progress: 100},
	}}
	h := NewSSEHandler(service.NewEventBus(), svc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := newPathValueRequest(t, http.MethodGet, "/api/events/j1", "id", "j1").WithContext(ctx)
	rec := httptest.NewRecorder()

	h.Events()(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, `"status":"analyzing"`)
	assert.Contains(t, body, `"status":"complete"`)
	assert.Contains(t, body, `"progress":100`)
}

func TestEvents_StreamsPublishedEvents(t *testing.T) {
	job := &domain.Job{ID: "j1", Status: domain.StatusExtracting, Progress: 10}
	bus := service.NewEventBus()
	h := NewSSEHandler(bus, &fakeJobService{jobs: map[string]*domain.Job{"j1": job}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := newPathValueRequest(t, http.MethodGet, "/api/events/j1", "id", "j1").WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Events()(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe before publishing
	time.Sleep(50 * time.Millisecond)
	bus.Publish("j1", service.Event{Status: domain.StatusTranscribing, Progress: 30})
	bus.Publish("j1", service.Event{Status: domain.StatusComplete, Progress: 100})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after context cancellation")
	}

	body := rec.Body.String()
	require.Contains(t, body, `"status":"extracting_audio"`)
	assert.Contains(t, body, `"status":"transcribing"`)
	assert.Contains(t, body, `"status":"complete"`)
}
