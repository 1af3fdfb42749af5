// Package server exposes job creation, inspection, progress streaming and
// advisory cancellation over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/internal/model"
	"github.com/sells-group/jobfit-research/internal/queue"
	"github.com/sells-group/jobfit-research/internal/store"
)

const defaultPollInterval = 2 * time.Second

// Enqueuer schedules a research run. *queue.Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(jobID string) error
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	store    store.Store
	queue    Enqueuer
	validate *validator.Validate
	poll     time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithPollInterval sets how often the stream endpoint re-reads the job.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.poll = d
		}
	}
}

// New creates a Server.
func New(st store.Store, q Enqueuer, opts ...Option) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{store: st, queue: q, validate: v, poll: defaultPollInterval}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/stream", s.handleStream)
		r.Post("/{id}/cancel", s.handleCancel)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createJobRequest struct {
	CompanyName    string `json:"company_name" validate:"required,max=200"`
	Position       string `json:"position" validate:"required,max=200"`
	JobDescription string `json:"job_description" validate:"max=50000"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Position = strings.TrimSpace(req.Position)
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	job, err := s.store.CreateJob(r.Context(), model.NewJobInput{
		CompanyName:    req.CompanyName,
		Position:       req.Position,
		JobDescription: req.JobDescription,
	})
	if err != nil {
		zap.L().Error("server: create job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create job")
		return
	}

	if err := s.queue.Enqueue(job.ID); err != nil {
		zap.L().Warn("server: enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		msg := err.Error()
		u := model.StageUpdate(model.AgentStageError)
		u.AgentError = &msg
		if uerr := s.store.UpdateJob(r.Context(), job.ID, u); uerr != nil {
			zap.L().Error("server: mark job failed", zap.String("job_id", job.ID), zap.Error(uerr))
		}
		status := http.StatusServiceUnavailable
		if !errors.Is(err, queue.ErrFull) && !errors.Is(err, queue.ErrClosed) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, "research queue unavailable")
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.findJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// statusEvent is the payload of a stream "status" event.
type statusEvent struct {
	ID             string               `json:"id"`
	InsightsStatus model.InsightsStatus `json:"insights_status"`
	AgentStage     model.AgentStage     `json:"agent_stage"`
	AgentProgress  *model.AgentProgress `json:"agent_progress,omitempty"`
	AgentError     string               `json:"agent_error,omitempty"`
}

func newStatusEvent(j *model.Job) statusEvent {
	return statusEvent{
		ID:             j.ID,
		InsightsStatus: j.InsightsStatus,
		AgentStage:     j.AgentStage,
		AgentProgress:  j.AgentProgress,
		AgentError:     j.AgentError,
	}
}

// handleStream emits a status event whenever the job's research state
// changes and a complete event with the full job once it is terminal.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	job, ok := s.findJob(w, r)
	if !ok {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	var last []byte
	for {
		ev := newStatusEvent(job)
		cur, _ := json.Marshal(ev)
		if string(cur) != string(last) {
			if err := sse.event("status", ev); err != nil {
				return
			}
			last = cur
		}
		if job.AgentStage.IsTerminal() {
			_ = sse.event("complete", job)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		job, err = s.store.FindJob(ctx, job.ID)
		if err != nil {
			_ = sse.event("error", map[string]string{"error": "job lookup failed"})
			return
		}
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, ok := s.findJob(w, r)
	if !ok {
		return
	}

	status := model.JobStatusCancelled
	if err := s.store.UpdateJob(r.Context(), job.ID, model.JobUpdate{Status: &status}); err != nil {
		zap.L().Error("server: cancel job", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": job.ID, "status": status})
}

// findJob loads the {id} job, writing a 404 or 500 when it cannot.
func (s *Server) findJob(w http.ResponseWriter, r *http.Request) (*model.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := s.store.FindJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("server: find job", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load job")
		return nil, false
	}
	return job, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
