// internal/workers/generation/compose-prompt/models.go
package composeprompt

import (
	"app-deployer/internal/models"
	decodeattachments "app-deployer/internal/workers/attachments/decode-attachments"
)

type Input struct {
	Round   int                        `json:"round"`
	Brief   string                     `json:"brief"`
	Checks  []string                   `json:"checks,omitempty"`
	Digests []decodeattachments.Digest `json:"digests,omitempty"`

	// Round 2 context.
	PriorBrief    string              `json:"priorBrief,omitempty"`
	PriorArtifact string              `json:"priorArtifact,omitempty"`
	PriorSources  []models.SourceFile `json:"priorSources,omitempty"`
}

type Output struct {
	Prompt string `json:"prompt"`
	// PriorArtifactTruncated is set when the prior markup and sources
	// exceeded the cap.
	PriorArtifactTruncated bool `json:"priorArtifactTruncated,omitempty"`
}
