// internal/workers/generation/compose-prompt/handler.go
package composeprompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"app-deployer/internal/common/logger"
	"app-deployer/internal/models"
	decodeattachments "app-deployer/internal/workers/attachments/decode-attachments"
)

const (
	TaskType = "compose-prompt"
)

var (
	ErrInvalidRound = errors.New("INVALID_ROUND")
	ErrEmptyBrief   = errors.New("EMPTY_BRIEF")
)

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: logger.ForComponent(log, TaskType),
	}
}

// Execute builds the generation instruction. The output depends only on the
// input, so identical rounds produce identical prompts.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.Round != models.RoundCreate && input.Round != models.RoundRevise {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRound, input.Round)
	}
	if strings.TrimSpace(input.Brief) == "" {
		return nil, ErrEmptyBrief
	}

	var parts []string
	var truncated bool

	if input.Round == models.RoundRevise {
		var prior string
		prior, truncated = capRunes(input.PriorArtifact, h.config.PriorArtifactMaxChars)

		parts = append(parts, "You are revising an existing single-page web application that is already published.")
		parts = append(parts, fmt.Sprintf("\nOriginal brief:\n%s", orNone(input.PriorBrief)))
		parts = append(parts, "\nCurrent index.html:")
		if prior == "" {
			parts = append(parts, "(not available; rebuild the page from the original brief)")
		} else {
			parts = append(parts, prior)
			if truncated {
				parts = append(parts, "(markup truncated)")
			}
		}
		if sources, cut := renderSources(input.PriorSources, remainingBudget(h.config.PriorArtifactMaxChars, prior)); sources != "" || cut {
			parts = append(parts, "\nOther files in the repository:")
			if sources != "" {
				parts = append(parts, sources)
			}
			if cut {
				parts = append(parts, "(remaining files omitted)")
				truncated = true
			}
		}
		parts = append(parts, fmt.Sprintf("\nRevision brief:\n%s", strings.TrimSpace(input.Brief)))
		parts = append(parts, "\nApply the revision in place. Keep the existing structure, styling and behavior that the revision brief does not ask to change.")
	} else {
		parts = append(parts, "Build a minimal, self-contained single-page web application for this brief.")
		parts = append(parts, fmt.Sprintf("\nBrief:\n%s", strings.TrimSpace(input.Brief)))
	}

	if len(input.Checks) > 0 {
		parts = append(parts, "\nThe result will be evaluated against these checks:")
		for _, check := range input.Checks {
			parts = append(parts, "- "+check)
		}
	}

	parts = append(parts, "\nAttachments (saved next to index.html under the same file names):")
	parts = append(parts, renderDigests(input.Digests))

	parts = append(parts, "\nOutput requirements:")
	parts = append(parts, "- Return exactly one complete file, index.html, starting with <!DOCTYPE html>.")
	parts = append(parts, "- Return only the file content: no explanations, no markdown code fences, no JSON.")
	parts = append(parts, "- Inline all CSS and JavaScript. Reference attachments by their file names.")
	parts = append(parts, fmt.Sprintf("- Load any external library only from %s with an exact pinned version.", h.config.CDNBaseURL))
	parts = append(parts, "- Do not use deprecated HTML elements or JavaScript APIs.")
	parts = append(parts, "- The document must be syntactically valid HTML5 with a closing </html> tag.")

	prompt := strings.Join(parts, "\n")

	h.logger.Debug("prompt composed", map[string]interface{}{
		"round":     input.Round,
		"chars":     utf8.RuneCountInString(prompt),
		"digests":   len(input.Digests),
		"truncated": truncated,
	})

	return &Output{Prompt: prompt, PriorArtifactTruncated: truncated}, nil
}

func renderDigests(digests []decodeattachments.Digest) string {
	if len(digests) == 0 {
		return "None"
	}
	blocks := make([]string, 0, len(digests))
	for _, d := range digests {
		header := fmt.Sprintf("- %s (%s)", d.Name, d.Kind)
		body := indent(d.Summary, "    ")
		blocks = append(blocks, header+"\n"+body)
	}
	return strings.Join(blocks, "\n")
}

// remainingBudget is what the cap leaves for sources once the markup is in.
// Zero max means no cap and yields -1.
func remainingBudget(max int, used string) int {
	if max <= 0 {
		return -1
	}
	left := max - utf8.RuneCountInString(used)
	if left < 0 {
		return 0
	}
	return left
}

// renderSources lists files in order until budget runes are spent. A file
// that does not fit is cut and the rest dropped. Negative budget is unlimited.
func renderSources(sources []models.SourceFile, budget int) (string, bool) {
	var blocks []string
	for _, src := range sources {
		content := src.Content
		cut := false
		if budget >= 0 {
			if budget == 0 {
				return strings.Join(blocks, "\n"), true
			}
			content, cut = capRunes(content, budget)
			budget -= utf8.RuneCountInString(content)
		}
		blocks = append(blocks, fmt.Sprintf("--- %s ---\n%s", src.Name, content))
		if cut {
			return strings.Join(blocks, "\n"), true
		}
	}
	return strings.Join(blocks, "\n"), false
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func capRunes(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	return string([]rune(s)[:max]), true
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(not recorded)"
	}
	return strings.TrimSpace(s)
}
