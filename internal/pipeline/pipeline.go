// Package pipeline runs one round end to end: digest attachments, compose the
// prompt, generate, publish, record round state and notify the evaluator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	commonerrors "app-deployer/internal/common/errors"
	"app-deployer/internal/common/logger"
	"app-deployer/internal/common/metrics"
	"app-deployer/internal/common/observability"
	"app-deployer/internal/models"
	"app-deployer/internal/roundstate"
	decodeattachments "app-deployer/internal/workers/attachments/decode-attachments"
	notifyevaluator "app-deployer/internal/workers/delivery/notify-evaluator"
	composeprompt "app-deployer/internal/workers/generation/compose-prompt"
	generateartifact "app-deployer/internal/workers/generation/generate-artifact"
	publishrepository "app-deployer/internal/workers/repository/publish-repository"

	"github.com/google/uuid"
)

const component = "pipeline"

type AttachmentDecoder interface {
	Execute(ctx context.Context, input *decodeattachments.Input) (*decodeattachments.Output, error)
}

type PromptComposer interface {
	Execute(ctx context.Context, input *composeprompt.Input) (*composeprompt.Output, error)
}

type ArtifactGenerator interface {
	Execute(ctx context.Context, input *generateartifact.Input) (*generateartifact.Output, error)
}

type RepositoryManager interface {
	Execute(ctx context.Context, input *publishrepository.Input) (*publishrepository.Output, error)
	Lookup(ctx context.Context, taskID string) (*models.RepoRef, error)
	ReadArtifact(ctx context.Context, ref models.RepoRef) (*publishrepository.PriorArtifact, error)
}

type Notifier interface {
	Notify(ctx context.Context, url string, payload models.NotificationPayload) (*notifyevaluator.Output, error)
}

// Deps are the collaborators of a Pipeline. Observability may be nil.
type Deps struct {
	Attachments   AttachmentDecoder
	Prompts       PromptComposer
	Generator     ArtifactGenerator
	Repositories  RepositoryManager
	Notifier      Notifier
	Store         roundstate.Store
	Observability *observability.Observability

	// ScratchRoot is where per-round scratch directories are created; empty means os.TempDir.
	ScratchRoot string
}

type Pipeline struct {
	deps       Deps
	logger     logger.Logger
	errHandler *commonerrors.ErrorHandler
	now        func() time.Time
}

func New(deps Deps, log logger.Logger) *Pipeline {
	log = logger.ForComponent(log, component)
	return &Pipeline{
		deps:       deps,
		logger:     log,
		errHandler: commonerrors.NewErrorHandler(log),
		now:        time.Now,
	}
}

// Process runs the round to completion. It never panics on step failure;
// the outcome, including the failure kind, is reported in the result.
func (p *Pipeline) Process(ctx context.Context, req *models.BuildRequest) *RoundResult {
	start := p.now()
	result := &RoundResult{
		RoundID: uuid.NewString(),
		Task:    req.Task,
		Round:   req.Round,
		Nonce:   req.Nonce,
	}
	log := p.logger.WithFields(map[string]interface{}{
		"roundId": result.RoundID,
		"task":    req.Task,
		"round":   req.Round,
	})

	metrics.RoundsActive.Inc()
	defer metrics.RoundsActive.Dec()

	log.Info("round started", map[string]interface{}{
		"nonce":       req.Nonce,
		"attachments": len(req.Attachments),
	})

	err := p.run(ctx, req, result, log)
	result.Duration = p.now().Sub(start)
	roundLabel := strconv.Itoa(req.Round)

	if err != nil {
		stdErr := p.errHandler.HandleRoundError(result.RoundID, req.Task, req.Round, err)
		result.Status = StatusFailed
		result.FailureKind = stdErr.Code
		result.Err = stdErr
		metrics.RoundsFailed.WithLabelValues(roundLabel, string(stdErr.Code)).Inc()
	} else {
		result.Status = StatusSucceeded
		metrics.RoundsCompleted.WithLabelValues(roundLabel).Inc()
		log.Info("round completed", map[string]interface{}{
			"commitSha": result.CommitSHA,
			"pagesUrl":  result.PagesURL,
			"degraded":  result.Degraded,
			"duration":  result.Duration.String(),
		})
	}

	metrics.RoundDuration.WithLabelValues(roundLabel).Observe(result.Duration.Seconds())
	p.deps.Observability.RecordRoundProcessed(ctx, req.Round, result.Status)
	p.deps.Observability.RecordRoundDuration(ctx, req.Round, result.Duration, result.Status)
	return result
}

func (p *Pipeline) run(ctx context.Context, req *models.BuildRequest, result *RoundResult, log logger.Logger) error {
	if req.Round != models.RoundCreate && req.Round != models.RoundRevise {
		return commonerrors.NewRequestInvalidError(fmt.Sprintf("round must be 1 or 2, got %d", req.Round))
	}

	scratch, err := os.MkdirTemp(p.deps.ScratchRoot, "appdeployer-round-*")
	if err != nil {
		return commonerrors.NewInternalError(fmt.Errorf("create scratch dir: %w", err))
	}
	defer os.RemoveAll(scratch)

	var decoded *decodeattachments.Output
	err = p.step(ctx, decodeattachments.TaskType, func() error {
		var err error
		decoded, err = p.deps.Attachments.Execute(ctx, &decodeattachments.Input{
			Attachments: req.Attachments,
			ScratchDir:  scratch,
		})
		return err
	})
	if err != nil {
		return commonerrors.NewInternalError(err)
	}

	var prior *priorRound
	if req.Round == models.RoundRevise {
		err = p.step(ctx, "resolve-repository", func() error {
			var err error
			prior, err = p.resolvePrior(ctx, req.Task, log)
			return err
		})
		if err != nil {
			return commonerrors.NewRepositoryFailedError("resolve", err)
		}
		result.Discovered = prior.discovered
	}

	promptInput := &composeprompt.Input{
		Round:   req.Round,
		Brief:   req.Brief,
		Checks:  req.Checks,
		Digests: decoded.Digests,
	}
	if prior != nil {
		promptInput.PriorBrief = prior.brief
		promptInput.PriorArtifact = prior.html
		promptInput.PriorSources = prior.sources
	}

	var prompt *composeprompt.Output
	err = p.step(ctx, composeprompt.TaskType, func() error {
		var err error
		prompt, err = p.deps.Prompts.Execute(ctx, promptInput)
		return err
	})
	if err != nil {
		return commonerrors.NewRequestInvalidError(err.Error())
	}

	var generated *generateartifact.Output
	err = p.step(ctx, generateartifact.TaskType, func() error {
		var err error
		generated, err = p.deps.Generator.Execute(ctx, &generateartifact.Input{
			Prompt: prompt.Prompt,
			Images: decoded.Images,
		})
		return err
	})
	if err != nil {
		return commonerrors.NewGenerationFailedError(err)
	}
	artifact := generated.Artifact
	if !artifact.Valid {
		result.Degraded = true
		result.FallbackReason = artifact.FallbackReason
	}

	publishInput := &publishrepository.Input{
		Request: req,
		HTML:    artifact.HTML,
		Files:   decoded.Files,
	}
	if prior != nil {
		publishInput.Repo = &prior.ref
		publishInput.PriorBrief = prior.brief
	}

	var published *publishrepository.Output
	err = p.step(ctx, publishrepository.TaskType, func() error {
		var err error
		published, err = p.deps.Repositories.Execute(ctx, publishInput)
		return err
	})
	if err != nil {
		return err
	}
	result.RepoURL = published.Repo.HTMLURL
	result.CommitSHA = published.CommitSHA
	result.PagesURL = published.Repo.PagesURL

	if req.Round == models.RoundCreate {
		p.record(ctx, &models.RepoRecord{
			Task:      req.Task,
			Repo:      published.Repo,
			Brief:     req.Brief,
			CreatedAt: p.now().UTC(),
		}, log)
	}

	return p.step(ctx, notifyevaluator.TaskType, func() error {
		_, err := p.deps.Notifier.Notify(ctx, req.EvaluationURL, models.NotificationPayload{
			Email:     req.Email,
			Task:      req.Task,
			Round:     req.Round,
			Nonce:     req.Nonce,
			RepoURL:   published.Repo.HTMLURL,
			CommitSHA: published.CommitSHA,
			PagesURL:  published.Repo.PagesURL,
		})
		return err
	})
}

type priorRound struct {
	ref        models.RepoRef
	brief      string
	html       string
	sources    []models.SourceFile
	discovered bool
}

// resolvePrior finds the task's repository through the registry, falling
// back to discovery by naming convention, then reads the published artifact.
func (p *Pipeline) resolvePrior(ctx context.Context, taskID string, log logger.Logger) (*priorRound, error) {
	prior := &priorRound{}

	record, err := p.deps.Store.Get(ctx, taskID)
	switch {
	case err == nil:
		prior.ref = record.Repo
		prior.brief = record.Brief
	case errors.Is(err, roundstate.ErrNotFound):
		log.Warn("no round state for task, discovering repository by convention", nil)
	default:
		log.Warn("round state lookup failed, discovering repository by convention", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if record == nil {
		ref, err := p.deps.Repositories.Lookup(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("discover repository: %w", err)
		}
		prior.ref = *ref
		prior.discovered = true
	}

	artifact, err := p.deps.Repositories.ReadArtifact(ctx, prior.ref)
	if err != nil {
		return nil, fmt.Errorf("read published artifact: %w", err)
	}
	prior.html = artifact.HTML
	prior.sources = artifact.Sources
	if prior.brief == "" && artifact.Brief != nil {
		prior.brief = artifact.Brief.Brief
	}

	if prior.discovered {
		p.record(ctx, &models.RepoRecord{
			Task:      taskID,
			Repo:      prior.ref,
			Brief:     prior.brief,
			CreatedAt: p.now().UTC(),
		}, log)
	}
	return prior, nil
}

// record writes round state. A failed write is logged only; round 2 can
// still discover the repository by convention.
func (p *Pipeline) record(ctx context.Context, record *models.RepoRecord, log logger.Logger) {
	if err := p.deps.Store.Put(ctx, record); err != nil {
		log.Warn("failed to record round state", map[string]interface{}{
			"error": err.Error(),
			"repo":  record.Repo.FullName,
		})
	}
}

func (p *Pipeline) step(ctx context.Context, name string, fn func() error) error {
	start := p.now()
	err := fn()
	p.deps.Observability.RecordStep(ctx, name, p.now().Sub(start), err == nil)
	return err
}
