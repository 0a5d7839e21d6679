// internal/common/errors/handler.go
package errors

// ErrorHandler logs round failures with standardized fields.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleRoundError normalizes err and logs it against the round that failed.
// It returns the normalized error so callers can record the code.
func (h *ErrorHandler) HandleRoundError(roundID, task string, round int, err error) *StandardError {
	stdErr := Normalize(err)
	if stdErr == nil {
		return nil
	}

	fields := map[string]interface{}{
		"roundId":       roundID,
		"task":          task,
		"round":         round,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	h.logger.Error("Round failed", fields)
	return stdErr
}
