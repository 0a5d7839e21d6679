// internal/workers/generation/generate-artifact/models.go
package generateartifact

import decodeattachments "app-deployer/internal/workers/attachments/decode-attachments"

type Input struct {
	Prompt string                        `json:"prompt"`
	Images []decodeattachments.ImagePart `json:"images,omitempty"`
}

type Output struct {
	Artifact Artifact `json:"artifact"`
}

// Artifact is the single document published for a round. Valid is false
// when FallbackDocument was substituted.
type Artifact struct {
	HTML           string `json:"html"`
	Valid          bool   `json:"valid"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// chatMessage content is a string, or a []contentPart for multimodal calls.
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
