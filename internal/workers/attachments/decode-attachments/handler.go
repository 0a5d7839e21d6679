// internal/workers/attachments/decode-attachments/handler.go
package decodeattachments

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	commonerrors "app-deployer/internal/common/errors"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/common/metrics"
)

const (
	TaskType = "decode-attachments"
)

var (
	ErrInvalidName = errors.New("invalid attachment name")
	ErrTooLarge    = errors.New("attachment exceeds size limit")
)

type Handler struct {
	config   *Config
	registry *Registry
	logger   logger.Logger
}

func NewHandler(config *Config, registry *Registry, log logger.Logger) *Handler {
	if registry == nil {
		registry = DefaultRegistry(config, NewTextExtractor(config))
	}
	return &Handler{
		config:   config,
		registry: registry,
		logger:   logger.ForComponent(log, TaskType),
	}
}

// Execute digests every attachment. It is total: a failing entry becomes an
// unavailable digest and the batch continues.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("%s: nil input", TaskType)
	}

	output := &Output{Digests: make([]Digest, 0, len(input.Attachments))}
	used := make(map[string]bool, len(input.Attachments))

	for _, att := range input.Attachments {
		digest, stored, image := h.processOne(ctx, input.ScratchDir, att.Name, att.URL, used)
		output.Digests = append(output.Digests, *digest)
		if stored != nil {
			output.Files = append(output.Files, *stored)
		}
		if image != nil {
			output.Images = append(output.Images, *image)
		}
		metrics.AttachmentDigests.WithLabelValues(string(digest.Kind)).Inc()
	}

	h.logger.Info("attachments digested", map[string]interface{}{
		"count":  len(output.Digests),
		"images": len(output.Images),
		"stored": len(output.Files),
	})

	return output, nil
}

func (h *Handler) processOne(ctx context.Context, scratchDir, rawName, uri string, used map[string]bool) (*Digest, *StoredFile, *ImagePart) {
	name, err := SanitizeName(rawName)
	if err != nil {
		return h.unavailable(rawName, "", 0, err), nil, nil
	}
	if unique := UniqueName(name, used); unique != name {
		h.logger.Warn("attachment name already taken, renamed", map[string]interface{}{
			"attachment": rawName,
			"name":       unique,
		})
		name = unique
	}

	if h.config.MaxBytes > 0 && int64(len(uri)) > h.config.MaxBytes*4/3+1024 {
		return h.unavailable(name, "", 0, ErrTooLarge), nil, nil
	}

	mediaType, data, err := ParseDataURI(uri)
	if err != nil {
		return h.unavailable(name, mediaType, 0, err), nil, nil
	}
	if h.config.MaxBytes > 0 && int64(len(data)) > h.config.MaxBytes {
		return h.unavailable(name, mediaType, len(data), ErrTooLarge), nil, nil
	}
	mediaType = resolveMediaType(name, mediaType)

	var image *ImagePart
	if strings.HasPrefix(mediaType, "image/") {
		image = &ImagePart{Name: name, MediaType: mediaType, DataURI: uri}
	}

	file := &File{Name: name, MediaType: mediaType, Data: data}
	var stored *StoredFile
	if scratchDir != "" {
		path := filepath.Join(scratchDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return h.unavailable(name, mediaType, len(data), fmt.Errorf("write scratch file: %w", err)), nil, nil
		}
		file.Path = path
		stored = &StoredFile{Name: name, Path: path}
	}

	digester := h.registry.Lookup(name, mediaType)
	if digester == nil {
		return &Digest{
			Name:      name,
			Kind:      KindUnrecognized,
			MediaType: mediaType,
			Size:      len(data),
			Summary:   fmt.Sprintf("binary attachment of type %s, %d bytes; not summarized", displayType(mediaType), len(data)),
		}, stored, image
	}

	digest, err := digester.Digest(ctx, file)
	if err != nil {
		return h.unavailable(name, mediaType, len(data), err), stored, image
	}
	digest.Name = name
	digest.MediaType = mediaType
	digest.Size = len(data)
	return digest, stored, image
}

func (h *Handler) unavailable(name, mediaType string, size int, err error) *Digest {
	stdErr := commonerrors.NewAttachmentUnavailableError(name, err)
	h.logger.Warn("attachment unavailable", map[string]interface{}{
		"attachment": name,
		"errorCode":  string(stdErr.Code),
		"reason":     stdErr.Details,
	})
	return &Digest{
		Name:      name,
		Kind:      KindUnavailable,
		MediaType: mediaType,
		Size:      size,
		Summary:   "unavailable: " + err.Error(),
		Reason:    err.Error(),
	}
}

// SanitizeName reduces an attachment name to a bare file name.
func SanitizeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.HasPrefix(base, ".") && strings.Trim(base, ".") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// UniqueName returns name, or name with a "-2", "-3"... suffix before the
// extension when used already holds it. The result is recorded in used.
func UniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, i, ext)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

func resolveMediaType(name, mediaType string) string {
	if mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	if mediaType == "" {
		return "application/octet-stream"
	}
	return mediaType
}

func displayType(mediaType string) string {
	if mediaType == "" {
		return "unknown"
	}
	return mediaType
}
