package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"convify/internal/deps"
	"convify/internal/executor"
	"convify/internal/jobs"
	"convify/internal/logging"
	"convify/internal/services"
	"convify/internal/youtube"
)

const (
	maxRequestBody      = 64 << 10
	defaultHistoryLimit = 50
)

// Executor is the subset of *executor.Executor the handlers call.
type Executor interface {
	Submit(ctx context.Context, source string, format jobs.Format) (string, error)
	Status(id string) (jobs.Job, error)
	Snapshot() []jobs.Job
	Stats() executor.Stats
}

// HistoryLister reads finished jobs that were archived. Status lookups never
// consult it, so evicted jobs answer not found.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]jobs.Job, error)
}

// PathValidator confirms a download path lies inside the output root.
type PathValidator interface {
	ValidatePath(path string) (string, error)
}

// CacheReporter exposes title cache counters.
type CacheReporter interface {
	Stats() youtube.CacheStats
}

// Options configures optional server behavior.
type Options struct {
	Token        string
	Requirements []deps.Requirement
	History      HistoryLister
	Titles       CacheReporter
	Logger       *slog.Logger
}

// Server routes HTTP requests to the executor.
type Server struct {
	exec      Executor
	paths     PathValidator
	opts      Options
	logger    *slog.Logger
	router    chi.Router
	checkDeps func(ctx context.Context, reqs []deps.Requirement) []deps.Status
}

// New builds the router.
func New(exec Executor, paths PathValidator, opts Options) *Server {
	s := &Server{
		exec:      exec,
		paths:     paths,
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "api"),
		checkDeps: deps.CheckBinaries,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, KeyNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, KeyMethod, "method not allowed")
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(strings.TrimSpace(opts.Token)))
			r.Post("/convert/async", s.handleConvert)
			r.Get("/convert/status/{jobId}", s.handleStatus)
			r.Get("/jobs", s.handleJobs)
			r.Post("/download", s.handleDownload)
		})
	})
	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, KeyValidation, "Malformed request body")
		return
	}
	if err := youtube.ValidateSourceURL(req.URL); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	format, err := jobs.ParseFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, KeyValidation, "Format must be one of 'mp3', 'mp4' or 'mkv'")
		return
	}

	id, err := s.exec.Submit(r.Context(), req.URL, format)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, ConvertResponse{
		JobID:   id,
		Status:  jobs.StatePending,
		Message: "Conversion started. Check status at /v1/convert/status/" + id,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "jobId"))
	job, err := s.exec.Status(id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if history, _ := strconv.ParseBool(r.URL.Query().Get("history")); history {
		s.handleHistory(w, r)
		return
	}
	snapshot := s.exec.Snapshot()
	filter := strings.TrimSpace(r.URL.Query().Get("status"))
	counts := make(map[jobs.State]int)
	out := make([]jobs.Job, 0, len(snapshot))
	for _, job := range snapshot {
		counts[job.State]++
		if filter != "" && string(job.State) != strings.ToLower(filter) {
			continue
		}
		out = append(out, job)
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: out, Counts: counts})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		s.writeError(w, http.StatusServiceUnavailable, KeyUnavailable, "Job history is not enabled")
		return
	}
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, KeyValidation, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	out, err := s.opts.History.List(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	counts := make(map[jobs.State]int)
	for _, job := range out {
		counts[job.State]++
	}
	if out == nil {
		out = []jobs.Job{}
	}
	s.writeJSON(w, http.StatusOK, JobListResponse{Jobs: out, Counts: counts})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req FilepathRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, KeyValidation, "Malformed request body")
		return
	}
	if strings.TrimSpace(req.Filepath) == "" {
		s.writeError(w, http.StatusBadRequest, KeyValidation, "Filepath cannot be empty")
		return
	}
	path, err := s.paths.ValidatePath(req.Filepath)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, KeyNotFound, "The requested file was not found.")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		s.writeError(w, http.StatusNotFound, KeyNotFound, "The requested file was not found.")
		return
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", contentType(name))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := s.checkDeps(r.Context(), s.opts.Requirements)
	resp := HealthResponse{
		Status:       "UP",
		Time:         time.Now().UTC(),
		Dependencies: statuses,
		Executor:     s.exec.Stats(),
	}
	if s.opts.Titles != nil {
		stats := s.opts.Titles.Stats()
		resp.TitleCache = &stats
	}
	code := http.StatusOK
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		resp.Status = "DOWN"
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, key, message := classify(r.URL.Path, err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see error for the failing collaborator"),
		)
	}
	s.writeError(w, status, key, message)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, key, message string) {
	s.writeJSON(w, status, newErrorResponse(key, message, status))
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(ctx, s.logger).Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "handler panicked", "api_panic",
					logging.Any("panic", rec),
					logging.String("path", r.URL.Path),
					logging.String(logging.FieldErrorHint, "report the request that triggered it"),
				)
				s.writeError(w, http.StatusInternalServerError, KeyInternal, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
