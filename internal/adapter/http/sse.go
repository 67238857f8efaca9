package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avela/lectern/internal/domain"
	"github.com/avela/lectern/internal/service"
)

const keepAliveInterval = 15 * time.Second

type SSEHandler struct {
	eventBus *service.EventBus
	jobSvc   JobService
}

func NewSSEHandler(eventBus *service.EventBus, jobSvc JobService) *SSEHandler {
	return &SSEHandler{
		eventBus: eventBus,
		jobSvc:   jobSvc,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendKeepAlive writes an SSE comment to keep the connection active.
func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// sendProgress writes one "progress" SSE event carrying the JSON payload.
func sendProgress(w http.ResponseWriter, event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	sseWrite(w, "progress", string(data))
}

func jobEvent(job *domain.Job) service.Event {
	event := service.Event{
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.Status == domain.StatusError {
		event.Message = job.ErrorMessage
	}
	return event
}

// Events streams job progress as SSE until the job reaches a terminal state
// and the client disconnects.
func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		job, err := h.jobSvc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				errorJSON(w, http.StatusNotFound, "job not found")
				return
			}
			errorJSON(w, http.StatusInternalServerError, "failed to load job")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// If already terminal, send the final state and wait for client close
		if job.Status.IsTerminal() {
			sendProgress(w, jobEvent(job))
			<-r.Context().Done()
			return
		}

		// Send current state
		sendProgress(w, jobEvent(job))

		// Subscribe to events
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		// The job may have finished between the snapshot and the subscription,
		// in which case its terminal event was published to nobody. Re-check so
		// the client still sees the final state.
		if job, err := h.jobSvc.Get(r.Context(), id); err == nil && job.Status.IsTerminal() {
			sendProgress(w, jobEvent(job))
			<-r.Context().Done()
			return
		}

		ctx := r.Context()
		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				sendProgress(w, event)

				// Let client close connection when terminal
				if event.Status.IsTerminal() {
					<-ctx.Done()
					return
				}
			}
		}
	}
}
