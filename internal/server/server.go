// Package server is the HTTP front door: authenticate, validate, enqueue, reply.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	commonerrors "app-deployer/internal/common/errors"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/models"
	"app-deployer/internal/pool"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const BuildPath = "/api-endpoint"

// Submitter hands an accepted round to background processing.
type Submitter interface {
	Submit(req *models.BuildRequest) error
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Config struct {
	Secret       string
	MaxBodyBytes int64
}

type Server struct {
	config    Config
	submitter Submitter
	checks    []ReadinessCheck
	logger    logger.Logger
	now       func() time.Time
}

func New(config Config, submitter Submitter, log logger.Logger, checks ...ReadinessCheck) *Server {
	return &Server{
		config:    config,
		submitter: submitter,
		checks:    checks,
		logger:    logger.ForComponent(log, "server"),
		now:       time.Now,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	r.Post(BuildPath, s.handleBuild)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, commonerrors.NewRequestInvalidError("request body too large"))
			return
		}
		s.writeError(w, http.StatusBadRequest, commonerrors.NewRequestInvalidError("unreadable body"))
		return
	}

	var req models.BuildRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewRequestInvalidError("malformed JSON"))
		return
	}

	if !s.secretMatches(req.Secret) {
		s.logger.Warn("rejected request with invalid secret", map[string]interface{}{
			"task":   req.Task,
			"round":  req.Round,
			"remote": r.RemoteAddr,
		})
		s.writeError(w, http.StatusForbidden, commonerrors.NewAuthFailedError())
		return
	}

	result, err := requestSchema.ValidateBytes(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewRequestInvalidError(err.Error()))
		return
	}
	if !result.Valid {
		s.writeError(w, http.StatusBadRequest, commonerrors.NewRequestInvalidError(result.String()))
		return
	}

	if err := s.submitter.Submit(&req); err != nil {
		s.logger.Error("failed to enqueue round", map[string]interface{}{
			"task":  req.Task,
			"round": req.Round,
			"error": err.Error(),
		})
		if errors.Is(err, pool.ErrQueueFull) || errors.Is(err, pool.ErrClosed) {
			s.writeError(w, http.StatusServiceUnavailable, commonerrors.NewQueueFullError())
			return
		}
		s.writeError(w, http.StatusInternalServerError, commonerrors.NewInternalError(err))
		return
	}

	s.logger.Info("round accepted", map[string]interface{}{
		"task":        req.Task,
		"round":       req.Round,
		"nonce":       req.Nonce,
		"attachments": len(req.Attachments),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failures := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "not_ready",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) secretMatches(got string) bool {
	if s.config.Secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.config.Secret)) == 1
}

func (s *Server) maxBody() int64 {
	if s.config.MaxBodyBytes > 0 {
		return s.config.MaxBodyBytes
	}
	return 32 << 20
}

func (s *Server) writeError(w http.ResponseWriter, status int, err *commonerrors.StandardError) {
	body := map[string]interface{}{
		"status": "error",
		"code":   err.Code,
		"error":  err.Message,
	}
	if err.Details != "" {
		body["detail"] = err.Details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
