// internal/workers/repository/publish-repository/models.go
package publishrepository

import (
	"time"

	"app-deployer/internal/models"
	decodeattachments "app-deployer/internal/workers/attachments/decode-attachments"
)

// Input is one publish step. Repo is nil on round 1; the handler then
// creates or reuses the task's repository.
type Input struct {
	Request    *models.BuildRequest           `json:"request"`
	Repo       *models.RepoRef                `json:"repo,omitempty"`
	HTML       string                         `json:"html"`
	Files      []decodeattachments.StoredFile `json:"files,omitempty"`
	PriorBrief string                         `json:"priorBrief,omitempty"`
}

type Output struct {
	Repo      models.RepoRef `json:"repo"`
	CommitSHA string         `json:"commitSha"`
	Created   bool           `json:"created"`
}

// Bundle is everything written into the working copy for one commit.
type Bundle struct {
	Round      int
	Task       string
	Email      string
	Nonce      string
	Brief      string
	PriorBrief string
	Checks     []string
	HTML       string
	Files      []decodeattachments.StoredFile
	Now        time.Time
}

// BriefRecord is persisted as brief.yml so a later round can rebuild context.
type BriefRecord struct {
	Task          string    `yaml:"task"`
	Round         int       `yaml:"round"`
	Brief         string    `yaml:"brief"`
	PreviousBrief string    `yaml:"previous_brief,omitempty"`
	Checks        []string  `yaml:"checks,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at"`
}

// PriorArtifact is what round 2 reads back from the repository.
type PriorArtifact struct {
	HTML  string
	Brief *BriefRecord
	// Sources holds the top-level script, stylesheet and markdown files,
	// ordered by name.
	Sources []models.SourceFile
}
