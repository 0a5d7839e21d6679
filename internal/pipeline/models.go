// internal/pipeline/models.go
package pipeline

import (
	"time"

	commonerrors "app-deployer/internal/common/errors"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// RoundResult is the observable outcome of one background round.
type RoundResult struct {
	RoundID     string                 `json:"roundId"`
	Task        string                 `json:"task"`
	Round       int                    `json:"round"`
	Nonce       string                 `json:"nonce"`
	Status      string                 `json:"status"`
	FailureKind commonerrors.ErrorCode `json:"failureKind,omitempty"`
	Err         error                  `json:"-"`

	RepoURL   string `json:"repoUrl,omitempty"`
	CommitSHA string `json:"commitSha,omitempty"`
	PagesURL  string `json:"pagesUrl,omitempty"`

	// Degraded is set when the fallback document was published.
	Degraded       bool   `json:"degraded,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`
	Discovered     bool   `json:"discovered,omitempty"`

	Duration time.Duration `json:"duration"`
}

func (r *RoundResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}
