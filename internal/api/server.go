package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/headers"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/metrics"
	"github.com/JakeFAU/redprobe/internal/middleware"
	"github.com/JakeFAU/redprobe/internal/note"
	"github.com/JakeFAU/redprobe/internal/resource"
)

// Checker runs a complete check.
type Checker interface {
	Check(ctx context.Context, req *message.Request, descend bool) *resource.Resource
}

// IDGenerator creates check identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Options tunes the server.
type Options struct {
	// AllowDescend permits requests to ask for link descent.
	AllowDescend bool
	// RequestTimeout bounds one API request. Zero disables it.
	RequestTimeout time.Duration
	// MaxBodyBytes bounds a request body. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Server wires HTTP handlers to the checker.
type Server struct {
	router  chi.Router
	checker Checker
	ids     IDGenerator
	opts    Options
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(checker Checker, ids IDGenerator, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		checker: checker,
		ids:     ids,
		opts:    opts,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID(ids))
	r.Use(middleware.Metrics)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	if opts.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(opts.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/checks", s.runCheck)
		r.Get("/notes/{kind}", s.describeNote)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type headerField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type checkRequest struct {
	URL     string        `json:"url"`
	Method  string        `json:"method"`
	Headers []headerField `json:"headers"`
	Descend bool          `json:"descend"`
}

type checkResponse struct {
	ID     string             `json:"id"`
	Result *resource.Resource `json:"result"`
}

func (s *Server) runCheck(w http.ResponseWriter, r *http.Request) {
	var body checkRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req, err := toRequest(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Descend && !s.opts.AllowDescend {
		s.writeError(w, http.StatusBadRequest, "descend is disabled")
		return
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate check id: %v", err))
		return
	}
	log := s.logger.With(zap.String("check_id", id), zap.String("uri", req.URI))
	log.Info("check started", zap.String("method", req.Method), zap.Bool("descend", body.Descend))
	res := s.checker.Check(r.Context(), req, body.Descend)
	log.Info("check finished", zap.Int("notes", res.Notes.Len()))
	s.writeJSON(w, http.StatusOK, checkResponse{ID: id, Result: res})
}

func toRequest(body checkRequest) (*message.Request, error) {
	if body.URL == "" {
		return nil, errors.New("url required")
	}
	u, err := url.Parse(body.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("url must be an absolute http or https URL")
	}
	method := strings.ToUpper(strings.TrimSpace(body.Method))
	if method == "" {
		method = http.MethodGet
	}
	if !headers.IsToken(method) {
		return nil, fmt.Errorf("invalid method %q", body.Method)
	}
	fields := make([]headers.Field, 0, len(body.Headers))
	for _, h := range body.Headers {
		if !headers.IsToken(h.Name) {
			return nil, fmt.Errorf("invalid header name %q", h.Name)
		}
		if strings.ContainsAny(h.Value, "\r\n") {
			return nil, fmt.Errorf("invalid value for header %q", h.Name)
		}
		fields = append(fields, headers.Field{Name: h.Name, Value: h.Value})
	}
	return message.NewRequest(method, u.String(), fields...), nil
}

type noteDescription struct {
	Kind     note.Kind     `json:"kind"`
	Category note.Category `json:"category"`
	Level    note.Level    `json:"level"`
	Summary  string        `json:"summary"`
}

func (s *Server) describeNote(w http.ResponseWriter, r *http.Request) {
	kind := note.Kind(strings.ToUpper(chi.URLParam(r, "kind")))
	if !note.Known(kind) {
		s.writeError(w, http.StatusNotFound, "unknown note kind")
		return
	}
	def := note.Lookup(kind)
	s.writeJSON(w, http.StatusOK, noteDescription{
		Kind:     kind,
		Category: def.Category,
		Level:    def.Level,
		Summary:  def.Summary,
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
