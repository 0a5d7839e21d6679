// internal/workers/delivery/notify-evaluator/handler.go
package notifyevaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "app-deployer/internal/common/errors"
	commonhttp "app-deployer/internal/common/http"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/common/metrics"
	"app-deployer/internal/models"
)

const (
	TaskType = "notify-evaluator"
)

var (
	ErrDeliveryExhausted = errors.New("DELIVERY_EXHAUSTED")
	ErrInvalidURL        = errors.New("INVALID_CALLBACK_URL")
)

// Poster sends one JSON POST. An error means no response was received.
type Poster interface {
	PostJSON(ctx context.Context, url string, body interface{}) (*commonhttp.Response, error)
}

type Handler struct {
	config *Config
	client Poster
	logger logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewHandler(config *Config, client Poster, log logger.Logger) *Handler {
	if client == nil {
		client = commonhttp.NewClient(config.Timeout)
	}
	return &Handler{
		config: config,
		client: client,
		logger: logger.ForComponent(log, TaskType),
		sleep:  sleepContext,
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.Notify(ctx, input.URL, input.Payload)
}

// Notify posts the payload until any HTTP response arrives. Only transport
// failures are retried, with delays base, 2*base, 4*base and so on until
// MaxAttempts is reached.
func (h *Handler) Notify(ctx context.Context, url string, payload models.NotificationPayload) (*Output, error) {
	if url == "" {
		return nil, commonerrors.NewDeliveryFailedError(0, ErrInvalidURL)
	}

	maxAttempts := h.config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	fields := map[string]interface{}{
		"task":  payload.Task,
		"round": payload.Round,
		"nonce": payload.Nonce,
	}

	delay := h.config.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := h.client.PostJSON(ctx, url, payload)
		if err == nil {
			out := &Output{Attempts: attempt, StatusCode: resp.StatusCode, Outcome: OutcomeAccepted}
			if !resp.IsSuccess() {
				out.Outcome = OutcomeRejected
				h.logger.Warn("evaluator rejected notification", withFields(fields, map[string]interface{}{
					"status":  resp.StatusCode,
					"attempt": attempt,
					"body":    truncate(string(resp.Body), 512),
				}))
			} else {
				h.logger.Info("evaluator notified", withFields(fields, map[string]interface{}{
					"status":  resp.StatusCode,
					"attempt": attempt,
				}))
			}
			metrics.NotificationAttempts.WithLabelValues(out.Outcome).Inc()
			return out, nil
		}

		lastErr = err
		metrics.NotificationAttempts.WithLabelValues("transport_error").Inc()
		if attempt == maxAttempts {
			break
		}

		h.logger.Warn("notification attempt failed, retrying", withFields(fields, map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		}))
		if err := h.sleep(ctx, delay); err != nil {
			return nil, commonerrors.NewDeliveryFailedError(attempt, fmt.Errorf("%w: %v", ErrDeliveryExhausted, err))
		}
		delay *= 2
	}

	h.logger.Error("notification retries exhausted", withFields(fields, map[string]interface{}{
		"attempts": maxAttempts,
		"error":    lastErr.Error(),
	}))
	return nil, commonerrors.NewDeliveryFailedError(maxAttempts, fmt.Errorf("%w after %d attempts: %v", ErrDeliveryExhausted, maxAttempts, lastErr))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
