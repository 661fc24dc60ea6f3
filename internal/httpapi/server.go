package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/keepwarm/internal/domain"
	apimw "github.com/hamed0406/keepwarm/internal/httpapi/middleware"
)

const (
	defaultLogsTail = 20
	maxLogsTail     = 1000
	maxBodyBytes    = 64 << 10
)

// Controller is the set of scheduler operations the API exposes.
type Controller interface {
	AddTarget(spec domain.TargetSpec) (domain.Target, error)
	RemoveTarget(id domain.TargetID) error
	Start(id domain.TargetID) error
	Stop(id domain.TargetID) error
	StartAll() error
	StopAll() error
	Get(id domain.TargetID) (domain.Target, error)
	List() []domain.Target
	Status(id domain.TargetID) (domain.TargetStatus, error)
	StatusAll() []domain.TargetStatus
	History(id domain.TargetID, limit int) ([]domain.PingOutcome, error)
	Recent(n int) []domain.PingOutcome
	Subscribe(buffer int) (<-chan domain.PingOutcome, func())
	Running() int
}

type Options struct {
	AllowedOrigins []string // empty allows any origin
	AdminRPM       int      // control requests per minute per client; <= 0 disables
	AdminBurst     int
	HistoryLimit   int // upper bound for ?limit= on history
}

type Server struct {
	Logger *zap.Logger
	Ctl    Controller
	opts   Options

	closing   chan struct{}
	closeOnce sync.Once
}

func NewServer(l *zap.Logger, ctl Controller, opts Options) *Server {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	return &Server{Logger: l, Ctl: ctl, opts: opts, closing: make(chan struct{})}
}

// Close ends every open outcome stream. http.Server.Shutdown does not track
// hijacked connections, so register it with RegisterOnShutdown.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.corsHandler())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/targets", s.handleListTargets)
		r.Get("/targets/{id}", s.handleGetTarget)
		r.Get("/targets/{id}/status", s.handleTargetStatus)
		r.Get("/targets/{id}/history", s.handleTargetHistory)
		r.Get("/status", s.handleStatusAll)
		r.Get("/logs", s.handleLogs)
		r.Get("/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(s.opts.AdminRPM, s.opts.AdminBurst))
			r.Post("/targets", s.handleAddTarget)
			r.Delete("/targets/{id}", s.handleRemoveTarget)
			r.Post("/targets/{id}/start", s.handleStartTarget)
			r.Post("/targets/{id}/stop", s.handleStopTarget)
			r.Post("/start", s.handleStartAll)
			r.Post("/stop", s.handleStopAll)
		})
	})

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	if len(s.opts.AllowedOrigins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
}

type addPayload struct {
	URL           string `json:"url"`
	Method        string `json:"method"`
	MinIntervalMS int64  `json:"min_interval_ms"`
	MaxIntervalMS int64  `json:"max_interval_ms"`
	TimeoutMS     int64  `json:"timeout_ms"`
	AutoStart     bool   `json:"auto_start"`
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var p addPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&p); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "payload too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad payload"})
		return
	}

	t, err := s.Ctl.AddTarget(domain.TargetSpec{
		URL:           p.URL,
		Method:        p.Method,
		MinIntervalMS: p.MinIntervalMS,
		MaxIntervalMS: p.MaxIntervalMS,
		TimeoutMS:     p.TimeoutMS,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p.AutoStart {
		if err := s.Ctl.Start(t.ID); err != nil {
			s.writeError(w, err)
			return
		}
		if t, err = s.Ctl.Get(t.ID); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ctl.List())
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := s.Ctl.Get(targetID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	if err := s.Ctl.RemoveTarget(targetID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartTarget(w http.ResponseWriter, r *http.Request) {
	s.control(w, targetID(r), s.Ctl.Start)
}

func (s *Server) handleStopTarget(w http.ResponseWriter, r *http.Request) {
	s.control(w, targetID(r), s.Ctl.Stop)
}

func (s *Server) control(w http.ResponseWriter, id domain.TargetID, op func(domain.TargetID) error) {
	if err := op(id); err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.Ctl.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTargetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Ctl.Status(targetID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTargetHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.Ctl.History(targetID(r), parseLimit(r, "limit", s.opts.HistoryLimit, s.opts.HistoryLimit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

type statusAllBody struct {
	Running int                   `json:"running"`
	Targets []domain.TargetStatus `json:"targets"`
}

func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusAllBody{Running: s.Ctl.Running(), Targets: s.Ctl.StatusAll()})
}

type runningBody struct {
	Running int `json:"running"`
}

func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	if err := s.Ctl.StartAll(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runningBody{Running: s.Ctl.Running()})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	if err := s.Ctl.StopAll(); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runningBody{Running: s.Ctl.Running()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Ctl.Recent(parseLimit(r, "tail", defaultLogsTail, maxLogsTail)))
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidConfig):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		s.Logger.Error("api_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func targetID(r *http.Request) domain.TargetID {
	return domain.TargetID(chi.URLParam(r, "id"))
}

// parseLimit reads a positive integer query parameter capped at max.
// Missing or invalid values yield fallback.
func parseLimit(r *http.Request, key string, fallback, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	if v > max {
		return max
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
