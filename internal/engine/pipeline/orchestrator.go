package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"listforge/internal/engine/cache"
	"listforge/internal/engine/domain"
	"listforge/internal/engine/stages"
	"listforge/pkg/config"
	"listforge/pkg/logger"
)

// Mode selects how much of the discovered batch is processed.
type Mode string

const (
	// ModeValidate processes exactly the first discovered design, to
	// sanity-check configuration before committing to a full run.
	ModeValidate Mode = "validate"
	// ModeBatch processes designs in fixed-size batches until done or halted.
	ModeBatch Mode = "batch"
)

// validateListingID marks outcomes whose draft listing was prepared but not
// created because the run was a validation pass.
const validateListingID = "draft_preview_only"

// Deps are the collaborators the orchestrator drives. Each is a swappable
// black box; the orchestrator only relies on the contracts in the stages
// package.
type Deps struct {
	Cache      *cache.Manager
	Discoverer stages.Discoverer
	Mockups    stages.MockupGenerator
	SEO        stages.SEOOptimizer
	PDF        stages.PDFCustomizer
	Uploader   stages.Uploader
	Lister     stages.Lister
}

// Orchestrator drives the end-to-end per-design workflow across a batch:
// fixed stage order, explicit cache attribution, retry with backoff around
// marketplace-backed stages, and fail-fast halting on the first failed design.
// Single-threaded by design: each design reaches a terminal state before the
// next starts.
type Orchestrator struct {
	mode      Mode
	batchSize int
	deps      Deps
	retry     retryPolicy
	logger    *logger.Logger
}

// New builds an orchestrator. Collaborator wiring mistakes are configuration
// errors, fatal before any design is processed.
func New(cfg config.PipelineConfig, mkt config.MarketplaceConfig, deps Deps) (*Orchestrator, error) {
	mode := Mode(cfg.Mode)
	if mode != ModeValidate && mode != ModeBatch {
		return nil, domain.NewConfigError(fmt.Sprintf("unknown pipeline mode %q", cfg.Mode), nil)
	}
	if deps.Cache == nil || deps.Discoverer == nil || deps.Mockups == nil ||
		deps.SEO == nil || deps.PDF == nil || deps.Uploader == nil {
		return nil, domain.NewConfigError("pipeline collaborators incompletely wired", nil)
	}
	if mode == ModeBatch && deps.Lister == nil {
		return nil, domain.NewConfigError("batch mode requires a marketplace lister", nil)
	}

	return &Orchestrator{
		mode:      mode,
		batchSize: cfg.BatchSize,
		deps:      deps,
		retry: retryPolicy{
			maxAttempts: mkt.MaxAttempts,
			baseDelay:   mkt.BaseDelay,
			maxDelay:    mkt.MaxDelay,
		},
		logger: logger.WithField("component", "orchestrator"),
	}, nil
}

// Run executes the pipeline and returns its summary. Expected per-design
// failures never surface as errors; an error return means either a
// configuration problem detected before any design was processed, a broken
// internal invariant, or cancellation.
func (o *Orchestrator) Run(ctx context.Context) (*domain.BatchSummary, error) {
	start := time.Now()
	summary := &domain.BatchSummary{
		RunID: uuid.NewString(),
		Mode:  string(o.mode),
	}
	log := o.logger.WithField("runId", summary.RunID)

	designs, err := o.deps.Discoverer.Discover()
	if err != nil {
		if errors.Is(err, domain.ErrDiscoveryRootMissing) {
			return nil, domain.NewConfigError("design discovery failed", err)
		}
		return nil, fmt.Errorf("design discovery failed: %w", err)
	}

	summary.TotalDiscovered = len(designs)
	if len(designs) == 0 {
		log.Warn("no design files found, nothing to do")
		summary.Success = true
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	if o.mode == ModeValidate {
		log.Info("validate mode: processing first design only", "discovered", len(designs))
		designs = designs[:1]
	} else {
		log.Info("batch mode: processing designs", "discovered", len(designs), "batchSize", o.batchSize)
	}

	halted := false

processing:
	for batchStart := 0; batchStart < len(designs); batchStart += o.batchSize {
		end := batchStart + o.batchSize
		if end > len(designs) {
			end = len(designs)
		}

		for _, desc := range designs[batchStart:end] {
			// user interrupts are honored between designs, never mid-design
			if ctx.Err() != nil {
				log.Warn("run cancelled between designs", "processed", summary.Processed)
				summary.Success = false
				summary.Elapsed = time.Since(start)
				return summary, ctx.Err()
			}

			outcome, err := o.processDesign(ctx, desc)
			if err != nil {
				summary.Success = false
				summary.Elapsed = time.Since(start)
				return summary, err
			}

			summary.Outcomes = append(summary.Outcomes, outcome)
			summary.Processed++
			if outcome.Status == domain.OutcomeFailed {
				summary.Failed++
				log.Error("design failed, halting batch",
					"slug", outcome.Slug, "stage", outcome.Stage, "error", outcome.Err)
				halted = true
				break processing
			}
			summary.Succeeded++
		}
	}

	summary.Success = !halted
	summary.Elapsed = time.Since(start)
	o.deps.Cache.LogStatus()
	log.Info("pipeline run complete",
		"processed", summary.Processed, "succeeded", summary.Succeeded,
		"failed", summary.Failed, "elapsed", summary.Elapsed)
	return summary, nil
}

// processDesign drives one design to a terminal state. The returned error is
// reserved for broken contracts (cache consistency) which are always fatal;
// stage failures are folded into the outcome.
func (o *Orchestrator) processDesign(ctx context.Context, desc domain.DesignDescriptor) (domain.BatchOutcome, error) {
	design := domain.NewDesign(desc)
	log := o.logger.WithField("slug", desc.Slug)
	log.Info("processing design", "file", desc.Filename)

	if err := o.deps.Cache.Register(desc.Slug); err != nil {
		return domain.BatchOutcome{}, fmt.Errorf("cache registration broken for %s: %w", desc.Slug, err)
	}
	if err := design.MarkCacheRegistered(); err != nil {
		return domain.BatchOutcome{}, err
	}

	listingID, stageErr := o.runStages(ctx, design, log)
	if stageErr != nil {
		if domain.IsInvariantViolation(stageErr) {
			return domain.BatchOutcome{}, stageErr
		}

		var failure *domain.StageFailure
		if !errors.As(stageErr, &failure) {
			failure = domain.NewStageFailure("unknown", desc.Slug, stageErr)
		}
		if err := design.MarkFailed(failure.Stage); err != nil {
			return domain.BatchOutcome{}, err
		}
		if err := o.deps.Cache.MarkFailed(desc.Slug); err != nil {
			return domain.BatchOutcome{}, fmt.Errorf("cache failure cleanup broken for %s: %w", desc.Slug, err)
		}

		return domain.BatchOutcome{
			Slug:     desc.Slug,
			Status:   domain.OutcomeFailed,
			Stage:    failure.Stage,
			Err:      failure.Err.Error(),
			Duration: design.Duration(),
		}, nil
	}

	if err := design.MarkSucceeded(); err != nil {
		return domain.BatchOutcome{}, err
	}
	if err := o.deps.Cache.MarkSuccess(desc.Slug); err != nil {
		return domain.BatchOutcome{}, fmt.Errorf("cache success cleanup broken for %s: %w", desc.Slug, err)
	}

	log.Info("design succeeded", "listingId", listingID, "duration", design.Duration())
	return domain.BatchOutcome{
		Slug:      desc.Slug,
		Status:    domain.OutcomeSucceeded,
		ListingID: listingID,
		Duration:  design.Duration(),
	}, nil
}

// runStages executes the fixed stage order for one design: mockups -> delivery
// document -> SEO text -> storage upload -> draft listing. Every produced path
// is attributed to the design's open cache registration before the next stage
// runs.
func (o *Orchestrator) runStages(ctx context.Context, design *domain.Design, log *logger.Logger) (string, error) {
	slug := design.Descriptor.Slug

	mockups, err := o.deps.Mockups.Generate(ctx, design.Descriptor)
	if err != nil {
		return "", domain.NewStageFailure(stages.StageMockups, slug, err)
	}
	if len(mockups) == 0 {
		return "", domain.NewStageFailure(stages.StageMockups, slug,
			errors.New("mockup generator produced no files"))
	}
	for _, path := range mockups {
		if err := o.deps.Cache.AddFile(slug, path); err != nil {
			return "", err
		}
	}
	log.Debug("mockups generated", "count", len(mockups))

	pdf, err := o.deps.PDF.Customize(ctx, design.Descriptor)
	if err != nil {
		return "", domain.NewStageFailure(stages.StagePDF, slug, err)
	}
	if err := o.deps.Cache.AddFile(slug, pdf); err != nil {
		return "", err
	}
	log.Debug("delivery document customized", "path", pdf)

	seo, err := o.deps.SEO.Optimize(ctx, design.Descriptor)
	if err != nil {
		return "", domain.NewStageFailure(stages.StageSEO, slug, err)
	}
	log.Debug("seo content generated", "title", seo.Title, "tags", len(seo.Tags))

	if err := design.MarkArtifactsGenerated(); err != nil {
		return "", err
	}

	for _, path := range mockups {
		uploadErr := o.retry.do(ctx, log, "upload "+path, func() error {
			_, err := o.deps.Uploader.Upload(ctx, path)
			return err
		})
		if uploadErr != nil {
			return "", domain.NewStageFailure(stages.StageUpload, slug, uploadErr)
		}
	}
	if err := design.MarkUploaded(); err != nil {
		return "", err
	}
	log.Debug("artifacts uploaded", "count", len(mockups))

	if o.mode == ModeValidate {
		log.Info("validate mode: draft listing prepared, not created")
		return validateListingID, nil
	}

	var listingID string
	listErr := o.retry.do(ctx, log, "create draft listing", func() error {
		var err error
		listingID, err = o.deps.Lister.CreateDraftListing(ctx, design.Descriptor, seo, mockups, pdf)
		return err
	})
	if listErr != nil {
		return "", domain.NewStageFailure(stages.StageListing, slug, listErr)
	}

	return listingID, nil
}
