package http

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avela/lectern/internal/adapter/http/middleware"
	"github.com/avela/lectern/internal/adapter/http/ratelimit"
	"github.com/avela/lectern/internal/service"
)

type Server struct {
	mux           *http.ServeMux
	handlers      *Handlers
	sseHandler    *SSEHandler
	submitLimiter *ratelimit.SubmissionLimiter
	behindProxy   bool
}

func NewServer(jobSvc JobService, backend Backend, eventBus *service.EventBus, maxSizeMB int, behindProxy bool) *Server {
	mux := http.NewServeMux()
	handlers := NewHandlers(jobSvc, backend, maxSizeMB)
	sseHandler := NewSSEHandler(eventBus, jobSvc)

	submitLimiter := ratelimit.NewSubmissionLimiter(
		10,
		1*time.Minute,
		5*time.Minute,
	)

	s := &Server{
		mux:           mux,
		handlers:      handlers,
		sseHandler:    sseHandler,
		submitLimiter: submitLimiter,
		behindProxy:   behindProxy,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/process", s.withSubmitLimit(s.handlers.Process()))
	s.mux.HandleFunc("POST /api/transcribe", s.withSubmitLimit(s.handlers.Transcribe()))
	s.mux.HandleFunc("POST /api/analyze", s.withSubmitLimit(s.handlers.Analyze()))

	s.mux.HandleFunc("GET /api/status/{id}", s.handlers.Status())
	s.mux.HandleFunc("GET /api/result/{id}", s.handlers.Result())
	s.mux.HandleFunc("GET /api/download/{id}/{kind}", s.handlers.Download())
	s.mux.HandleFunc("GET /api/jobs", s.handlers.Jobs())
	s.mux.HandleFunc("GET /api/health", s.handlers.Health())

	s.mux.HandleFunc("GET /api/events/{id}", s.sseHandler.Events())
}

// withSubmitLimit throttles submission endpoints per client IP.
func (s *Server) withSubmitLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := s.submitLimiter.Check(s.clientIP(r))
		if !allowed {
			w.Header().Set("Retry-After", retryAfter.Round(time.Second).String())
			errorJSON(w, http.StatusTooManyRequests, "too many submissions, slow down")
			return
		}
		next(w, r)
	}
}

// clientIP resolves the client address, honoring X-Forwarded-For only when
// the server is configured to sit behind a trusted reverse proxy.
func (s *Server) clientIP(r *http.Request) string {
	if s.behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			// First hop is the original client
			if idx := strings.IndexByte(fwd, ','); idx >= 0 {
				fwd = fwd[:idx]
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
