// internal/workers/generation/generate-artifact/handler.go
package generateartifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	commonerrors "app-deployer/internal/common/errors"
	httpclient "app-deployer/internal/common/http"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/common/metrics"
)

const (
	TaskType = "generate-artifact"
)

var (
	ErrGenerationFailed = errors.New("GENERATION_FAILED")
	ErrEmptyCompletion  = errors.New("EMPTY_COMPLETION")
)

// Fallback reasons, also used as metric labels.
const (
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonDecode    = "decode"
	ReasonEmpty     = "empty"
	ReasonAmbiguous = "ambiguous"
	ReasonMalformed = "malformed"
)

type Handler struct {
	config *Config
	client *httpclient.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: httpclient.NewClient(config.Timeout).WithBearerToken(config.APIKey),
		logger: logger.ForComponent(log, TaskType),
	}
}

// Execute calls the backend once and returns an artifact. Backend and
// extraction failures are contained: the fallback document is returned with
// Valid=false and a nil error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%s: nil input", TaskType)
	}

	raw, reason, err := h.complete(ctx, input)
	if err != nil {
		stdErr := commonerrors.NewGenerationFailedError(err)
		h.logger.Warn("generation failed, using fallback document", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"reason":    reason,
			"error":     err,
		})
		return h.fallback(reason), nil
	}

	doc, err := ExtractDocument(raw)
	if err != nil {
		stdErr := commonerrors.NewExtractionAmbiguousError(err)
		h.logger.Warn("no document marker in generator output, using fallback document", map[string]interface{}{
			"errorCode":   string(stdErr.Code),
			"responseLen": len(raw),
		})
		return h.fallback(ReasonAmbiguous), nil
	}

	if !IsWellFormed(doc) {
		h.logger.Warn("extracted document is not well formed, using fallback document", map[string]interface{}{
			"documentLen": len(doc),
		})
		return h.fallback(ReasonMalformed), nil
	}

	h.logger.Info("artifact generated", map[string]interface{}{
		"documentLen": len(doc),
		"images":      len(input.Images),
	})

	return &Output{Artifact: Artifact{HTML: doc, Valid: true}}, nil
}

func (h *Handler) complete(ctx context.Context, input *Input) (string, string, error) {
	request := chatRequest{
		Model:       h.config.Model,
		Temperature: h.config.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: buildContent(input)}},
	}

	endpoint := strings.TrimRight(h.config.BaseURL, "/") + "/chat/completions"
	resp, err := h.client.PostJSON(ctx, endpoint, request)
	if err != nil {
		return "", ReasonTransport, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if !resp.IsSuccess() {
		return "", ReasonStatus, fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var completion chatResponse
	if err := resp.DecodeJSON(&completion); err != nil {
		return "", ReasonDecode, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", ReasonEmpty, ErrEmptyCompletion
	}

	return completion.Choices[0].Message.Content, "", nil
}

// buildContent returns plain text, or text plus image parts when images exist.
func buildContent(input *Input) interface{} {
	if len(input.Images) == 0 {
		return input.Prompt
	}
	parts := make([]contentPart, 0, len(input.Images)+1)
	parts = append(parts, contentPart{Type: "text", Text: input.Prompt})
	for _, img := range input.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img.DataURI}})
	}
	return parts
}

func (h *Handler) fallback(reason string) *Output {
	metrics.GenerationFallbacks.WithLabelValues(reason).Inc()
	return &Output{Artifact: Artifact{HTML: FallbackDocument, Valid: false, FallbackReason: reason}}
}
