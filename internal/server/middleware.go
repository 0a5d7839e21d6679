package server

import (
	"net/http"
	"time"

	"app-deployer/internal/common/logger"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger writes one entry per request through the service logger.
// It must run inside middleware.RequestID to pick up the request id.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				fields := map[string]interface{}{
					"method":    r.Method,
					"path":      r.URL.Path,
					"status":    status,
					"bytes":     ww.BytesWritten(),
					"duration":  time.Since(start).String(),
					"requestId": middleware.GetReqID(r.Context()),
					"remote":    r.RemoteAddr,
				}
				if status >= http.StatusInternalServerError {
					log.Error("http request", fields)
					return
				}
				log.Info("http request", fields)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
