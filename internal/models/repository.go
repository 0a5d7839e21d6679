// internal/models/repository.go
package models

import "time"

// RepoRef identifies a remote repository and where it is hosted.
type RepoRef struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	HTMLURL  string `json:"html_url"`
	PagesURL string `json:"pages_url"`
}

// RepoRecord is the round state kept per task. Written once on round 1.
type RepoRecord struct {
	Task      string    `json:"task" db:"task_id"`
	Repo      RepoRef   `json:"repo" db:"-"`
	Brief     string    `json:"brief" db:"brief"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SourceFile is a text file read back from a published repository.
type SourceFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}
