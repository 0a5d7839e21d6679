// internal/workers/repository/publish-repository/handler.go
package publishrepository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	commonerrors "app-deployer/internal/common/errors"
	"app-deployer/internal/common/git"
	"app-deployer/internal/common/github"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/models"

	"gopkg.in/yaml.v3"
)

const (
	TaskType = "publish-repository"

	FileIndex   = "index.html"
	FileBrief   = "brief.yml"
	FileLicense = "LICENSE"
	FileReadme  = "README.md"
)

var (
	ErrRepositoryNotFound = errors.New("REPOSITORY_NOT_FOUND")
	ErrInvalidTaskID      = errors.New("INVALID_TASK_ID")
)

var reservedFiles = map[string]bool{
	FileIndex:   true,
	FileBrief:   true,
	FileLicense: true,
	FileReadme:  true,
}

// GitHubAPI is the repository host surface used by the handler.
type GitHubAPI interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	CreateRepository(ctx context.Context, org, name, description string, private bool) (*github.Repository, error)
	EnablePages(ctx context.Context, fullName, branch, path string) error
}

type Handler struct {
	config *Config
	github GitHubAPI
	git    *git.Client
	logger logger.Logger
	now    func() time.Time
}

// NewHandler commits through runner under the configured bot identity.
func NewHandler(config *Config, gh GitHubAPI, runner git.Runner, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		github: gh,
		git:    git.NewClient(runner, config.GitUserName, config.GitUserEmail),
		logger: logger.ForComponent(log, TaskType),
		now:    time.Now,
	}
}

// Execute runs the repository part of a round: resolve the repository
// (create or reuse on round 1), publish one commit, and enable hosting on
// round 1. Any failure is a REPOSITORY_FAILED StandardError.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req := input.Request
	if req == nil {
		return nil, commonerrors.NewRepositoryFailedError("input", errors.New("nil request"))
	}

	var ref *models.RepoRef
	created := false
	if input.Repo != nil {
		ref = input.Repo
	} else {
		var err error
		ref, created, err = h.CreateOrGet(ctx, req.Task)
		if err != nil {
			return nil, commonerrors.NewRepositoryFailedError("create", err)
		}
	}

	sha, err := h.Publish(ctx, *ref, &Bundle{
		Round:      req.Round,
		Task:       req.Task,
		Email:      req.Email,
		Nonce:      req.Nonce,
		Brief:      req.Brief,
		PriorBrief: input.PriorBrief,
		Checks:     req.Checks,
		HTML:       input.HTML,
		Files:      input.Files,
		Now:        h.now().UTC(),
	})
	if err != nil {
		return nil, commonerrors.NewRepositoryFailedError("publish", err)
	}

	if req.Round == models.RoundCreate {
		if err := h.EnableHosting(ctx, *ref); err != nil {
			return nil, commonerrors.NewRepositoryFailedError("enable-hosting", err)
		}
	}

	return &Output{Repo: *ref, CommitSHA: sha, Created: created}, nil
}

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// RepoName derives the repository name for a task id.
func RepoName(taskID string) (string, error) {
	name := invalidNameChars.ReplaceAllString(strings.TrimSpace(taskID), "-")
	name = strings.Trim(name, "-.")
	if len(name) > 100 {
		name = strings.TrimRight(name[:100], "-.")
	}
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskID, taskID)
	}
	return name, nil
}

// CreateOrGet returns the task's repository, creating it only when the host
// reports it missing. Repeated calls for one task yield the same repository.
func (h *Handler) CreateOrGet(ctx context.Context, taskID string) (*models.RepoRef, bool, error) {
	name, err := RepoName(taskID)
	if err != nil {
		return nil, false, err
	}

	repo, err := h.github.GetRepository(ctx, h.config.Owner, name)
	if err == nil {
		h.logger.Info("reusing existing repository", map[string]interface{}{"repo": repo.FullName})
		return h.toRef(repo, name), false, nil
	}
	if !errors.Is(err, github.ErrNotFound) {
		return nil, false, err
	}

	repo, err = h.github.CreateRepository(ctx, h.config.Org, name, "Generated for task "+taskID, h.config.Private)
	if errors.Is(err, github.ErrAlreadyExists) {
		// Lost a creation race; read the winner.
		repo, err = h.github.GetRepository(ctx, h.config.Owner, name)
		if err != nil {
			return nil, false, err
		}
		return h.toRef(repo, name), false, nil
	}
	if err != nil {
		return nil, false, err
	}

	h.logger.Info("repository created", map[string]interface{}{"repo": repo.FullName})
	return h.toRef(repo, name), true, nil
}

// Lookup resolves the task's repository by naming convention only.
func (h *Handler) Lookup(ctx context.Context, taskID string) (*models.RepoRef, error) {
	name, err := RepoName(taskID)
	if err != nil {
		return nil, err
	}

	repo, err := h.github.GetRepository(ctx, h.config.Owner, name)
	if errors.Is(err, github.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrRepositoryNotFound, h.config.Owner, name)
	}
	if err != nil {
		return nil, err
	}
	return h.toRef(repo, name), nil
}

// Publish clones ref, overlays the bundle, commits and pushes. It returns the
// new commit sha. The working copy is removed on every path.
func (h *Handler) Publish(ctx context.Context, ref models.RepoRef, b *Bundle) (string, error) {
	workDir, err := os.MkdirTemp("", "appdeployer-clone-*")
	if err != nil {
		return "", fmt.Errorf("create clone dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dir := filepath.Join(workDir, "repo")
	if err := h.git.Clone(ctx, h.authenticatedURL(ref.CloneURL), dir); err != nil {
		return "", err
	}
	if err := h.git.CheckoutBranch(ctx, dir, h.config.Branch); err != nil {
		return "", err
	}
	if err := h.git.ConfigureIdentity(ctx, dir); err != nil {
		return "", err
	}

	if err := h.writeBundle(dir, ref, b); err != nil {
		return "", err
	}

	if err := h.git.AddAll(ctx, dir); err != nil {
		return "", err
	}
	if err := h.git.Commit(ctx, dir, commitMessage(b)); err != nil {
		return "", err
	}
	if err := h.git.Push(ctx, dir, h.config.Branch); err != nil {
		return "", err
	}

	sha, err := h.git.HeadSHA(ctx, dir)
	if err != nil {
		return "", err
	}

	h.logger.Info("round published", map[string]interface{}{
		"repo":      ref.FullName,
		"round":     b.Round,
		"commitSha": sha,
		"files":     len(b.Files),
	})
	return sha, nil
}

// ReadArtifact returns the published index.html, brief.yml and top-level
// source files of ref. Missing files yield empty values rather than errors.
func (h *Handler) ReadArtifact(ctx context.Context, ref models.RepoRef) (*PriorArtifact, error) {
	workDir, err := os.MkdirTemp("", "appdeployer-read-*")
	if err != nil {
		return nil, fmt.Errorf("create clone dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dir := filepath.Join(workDir, "repo")
	if err := h.git.Clone(ctx, h.authenticatedURL(ref.CloneURL), dir); err != nil {
		return nil, err
	}

	prior := &PriorArtifact{}
	if data, err := os.ReadFile(filepath.Join(dir, FileIndex)); err == nil {
		prior.HTML = string(data)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", FileIndex, err)
	}

	if data, err := os.ReadFile(filepath.Join(dir, FileBrief)); err == nil {
		var record BriefRecord
		if err := yaml.Unmarshal(data, &record); err != nil {
			h.logger.Warn("ignoring unreadable brief record", map[string]interface{}{
				"repo":  ref.FullName,
				"error": err,
			})
		} else {
			prior.Brief = &record
		}
	}

	sources, err := readSources(dir)
	if err != nil {
		return nil, err
	}
	prior.Sources = sources

	return prior, nil
}

var sourceExtensions = map[string]bool{".js": true, ".css": true, ".md": true}

// readSources loads the top-level files whose extension marks them as
// page source. Subdirectories and symlinks are skipped.
func readSources(dir string) ([]models.SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list repository files: %w", err)
	}

	var sources []models.SourceFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !sourceExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		sources = append(sources, models.SourceFile{Name: entry.Name(), Content: string(data)})
	}
	return sources, nil
}

// EnableHosting turns on static hosting; an already enabled site is success.
func (h *Handler) EnableHosting(ctx context.Context, ref models.RepoRef) error {
	err := h.github.EnablePages(ctx, ref.FullName, h.config.Branch, "/")
	if errors.Is(err, github.ErrAlreadyExists) {
		h.logger.Debug("hosting already enabled", map[string]interface{}{"repo": ref.FullName})
		return nil
	}
	return err
}

func (h *Handler) writeBundle(dir string, ref models.RepoRef, b *Bundle) error {
	files := map[string]string{FileIndex: b.HTML}

	briefYAML, err := yaml.Marshal(&BriefRecord{
		Task:          b.Task,
		Round:         b.Round,
		Brief:         b.Brief,
		PreviousBrief: b.PriorBrief,
		Checks:        b.Checks,
		UpdatedAt:     b.Now,
	})
	if err != nil {
		return fmt.Errorf("encode brief record: %w", err)
	}
	files[FileBrief] = string(briefYAML)

	license, err := renderLicense(authorName(b.Email), b.Now.Year())
	if err != nil {
		return err
	}
	files[FileLicense] = license

	attachmentNames := make([]string, 0, len(b.Files))
	for _, f := range b.Files {
		if reservedFiles[f.Name] {
			h.logger.Warn("attachment name collides with a generated file, skipping", map[string]interface{}{
				"attachment": f.Name,
			})
			continue
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return fmt.Errorf("read attachment %s: %w", f.Name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name), data, 0o644); err != nil {
			return fmt.Errorf("write attachment %s: %w", f.Name, err)
		}
		attachmentNames = append(attachmentNames, f.Name)
	}

	readme, err := renderReadme(b.Round, readmeData{
		Name:       ref.Name,
		Brief:      strings.TrimSpace(b.Brief),
		PriorBrief: strings.TrimSpace(b.PriorBrief),
		PagesURL:   ref.PagesURL,
		Files:      attachmentNames,
	})
	if err != nil {
		return err
	}
	files[FileReadme] = readme

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func (h *Handler) toRef(repo *github.Repository, name string) *models.RepoRef {
	owner := repo.Owner.Login
	if owner == "" {
		owner = h.config.Owner
	}
	if repo.Name != "" {
		name = repo.Name
	}
	fullName := repo.FullName
	if fullName == "" {
		fullName = owner + "/" + name
	}
	cloneURL := repo.CloneURL
	if cloneURL == "" {
		cloneURL = fmt.Sprintf("https://github.com/%s.git", fullName)
	}
	htmlURL := repo.HTMLURL
	if htmlURL == "" {
		htmlURL = "https://github.com/" + fullName
	}

	return &models.RepoRef{
		Owner:    owner,
		Name:     name,
		FullName: fullName,
		CloneURL: cloneURL,
		HTMLURL:  htmlURL,
		PagesURL: fmt.Sprintf("https://%s.%s/%s/", strings.ToLower(owner), h.config.PagesDomain, name),
	}
}

// authenticatedURL embeds the token for https remotes. The result must never be logged.
func (h *Handler) authenticatedURL(remote string) string {
	if h.config.Token == "" {
		return remote
	}
	u, err := url.Parse(remote)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return remote
	}
	u.User = url.UserPassword("x-access-token", h.config.Token)
	return u.String()
}

func commitMessage(b *Bundle) string {
	summary := ""
	for _, line := range strings.Split(b.Brief, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			summary = trimmed
			break
		}
	}
	if r := []rune(summary); len(r) > 72 {
		summary = string(r[:72])
	}
	return fmt.Sprintf("Round %d: %s", b.Round, summary)
}

func authorName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	if email == "" {
		return "app-deployer"
	}
	return email
}
