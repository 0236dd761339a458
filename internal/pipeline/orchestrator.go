package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"treadle/internal/cache"
	"treadle/internal/config"
	"treadle/internal/decision"
	"treadle/internal/fingerprint"
	"treadle/internal/logging"
	"treadle/internal/manifest"
	"treadle/internal/services"
	"treadle/internal/stage"
	"treadle/internal/training"
)

// Orchestrator runs jobs. It is safe for concurrent Run calls; the cache
// store serializes duplicate computations across them.
type Orchestrator struct {
	cfg           *config.Config
	logger        *slog.Logger
	extractor     *fingerprint.Extractor
	engine        *decision.Engine
	store         *cache.Store
	recorder      *training.Recorder
	collaborators map[string]stage.Collaborator

	retryInterval time.Duration
}

// New constructs an orchestrator. store may be nil when caching is disabled;
// recorder may be nil when no training log is configured.
func New(cfg *config.Config, logger *slog.Logger, extractor *fingerprint.Extractor, engine *decision.Engine, store *cache.Store, recorder *training.Recorder) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "pipeline"),
		extractor:     extractor,
		engine:        engine,
		store:         store,
		recorder:      recorder,
		collaborators: make(map[string]stage.Collaborator),
		retryInterval: 500 * time.Millisecond,
	}
}

// Register binds a collaborator to a stage ID, replacing any previous binding.
func (o *Orchestrator) Register(stageID string, collab stage.Collaborator) {
	o.collaborators[stageID] = collab
}

// Run executes the job's stages in dependency order and seals a manifest for
// the attempt. An unreadable input or an invalid stage graph fails before any
// stage runs; after that, failures are classified per stage and the returned
// report carries the full trace either way.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Report, error) {
	if job.MediaRef == "" {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "run", "Job has no media reference", nil)
	}
	if job.ID == "" {
		job = NewJob(job.MediaRef, job.Language, job.Stages)
	}
	ctx = services.WithJobID(ctx, job.ID)
	log := logging.WithContext(ctx, o.logger)

	plan, err := stage.Plan(job.Stages)
	if err != nil {
		return nil, err
	}
	if err := o.preflight(ctx, plan); err != nil {
		return nil, err
	}

	fp, err := o.extractor.Extract(ctx, job.MediaRef, job.Language)
	if err != nil {
		return nil, err
	}
	fpHash := fp.Hash()

	ledger, err := manifest.Create(o.cfg.Paths.ManifestDir, job.ID, job.MediaRef, fpHash)
	if err != nil {
		return nil, err
	}

	report := &Report{JobID: job.ID, FingerprintHash: fpHash, ManifestPath: ledger.Path()}
	outputs := make(map[string]string)

	log.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("media_ref", job.MediaRef),
		logging.Int("stages", len(plan)),
	)

	for _, decl := range plan {
		if ctx.Err() != nil {
			return o.finish(ctx, ledger, report, OutcomeCancelled, ctx.Err())
		}

		stageCtx := services.WithStage(ctx, decl.ID)
		rec, artifact, err := o.runStage(stageCtx, job, decl, fp, outputs)
		report.Stages = append(report.Stages, rec)
		if appendErr := ledger.Append(rec); appendErr != nil {
			return o.finish(ctx, ledger, report, OutcomeFailed, appendErr)
		}

		switch rec.Status {
		case manifest.StatusCompleted, manifest.StatusSkipped:
			outputs[decl.ID] = artifact
		case manifest.StatusDegraded:
			report.DegradedStages = append(report.DegradedStages, decl.ID)
			for name, ref := range decl.FallbackOutputs {
				outputs[name] = ref
			}
		case manifest.StatusFailed:
			if ctx.Err() != nil {
				return o.finish(ctx, ledger, report, OutcomeCancelled, err)
			}
			return o.finish(ctx, ledger, report, OutcomeFailed, err)
		}
	}

	outcome := OutcomeCompleted
	if len(report.DegradedStages) > 0 {
		outcome = OutcomeDegraded
	}
	return o.finish(ctx, ledger, report, outcome, nil)
}

func (o *Orchestrator) finish(ctx context.Context, ledger *manifest.Ledger, report *Report, outcome string, cause error) (*Report, error) {
	report.Outcome = outcome
	report.Err = cause
	if err := ledger.Seal(outcome); err != nil {
		logging.WithContext(ctx, o.logger).Warn("manifest seal failed", logging.Error(err))
	}
	log := logging.WithContext(ctx, o.logger)
	if cause != nil {
		log.Error("job finished",
			logging.String(logging.FieldEventType, "job_"+outcome),
			logging.Error(cause),
		)
		return report, cause
	}
	log.Info("job finished",
		logging.String(logging.FieldEventType, "job_"+outcome),
		logging.Int("degraded_stages", len(report.DegradedStages)),
	)
	return report, nil
}

// preflight refuses to start when a required stage has no collaborator or
// its collaborator reports itself unready. Optional stages only warn; they
// will degrade at execution time.
func (o *Orchestrator) preflight(ctx context.Context, plan []stage.Declaration) error {
	for _, decl := range plan {
		collab, ok := o.collaborators[decl.ID]
		if !ok {
			if decl.Optional {
				continue
			}
			return services.Wrap(services.ErrConfiguration, decl.ID, "preflight",
				"No collaborator registered for required stage", nil)
		}
		checker, ok := collab.(stage.HealthChecker)
		if !ok {
			continue
		}
		health := checker.HealthCheck(ctx)
		if health.Ready {
			continue
		}
		if decl.Optional {
			o.logger.Warn("optional stage collaborator unready",
				logging.String(logging.FieldStage, decl.ID),
				logging.String("detail", health.Detail),
			)
			continue
		}
		return services.Wrap(services.ErrConfiguration, decl.ID, "preflight",
			fmt.Sprintf("Collaborator not ready: %s", health.Detail), nil)
	}
	return nil
}

// runStage resolves, caches, and executes one stage. The returned record is
// always appendable; err is non-nil only for failed records.
func (o *Orchestrator) runStage(ctx context.Context, job Job, decl stage.Declaration, fp fingerprint.Fingerprint, outputs map[string]string) (manifest.StageRecord, string, error) {
	started := time.Now()
	log := logging.WithContext(ctx, o.logger)

	resolved := o.engine.Resolve(ctx, decl.ID, fp, job.Overrides[decl.ID])
	key := cache.NewKey(fp.Hash(), resolved)

	rec := manifest.StageRecord{
		StageID:  decl.ID,
		Inputs:   decl.DependsOn,
		Config:   resolved,
		CacheKey: key.String(),
	}

	var lease *cache.Lease
	if o.store != nil {
		var entry *cache.Entry
		var err error
		lease, entry, err = o.store.Acquire(ctx, key)
		switch {
		case err != nil && ctx.Err() != nil:
			return o.failRecord(rec, started, err), "", err
		case err != nil:
			// Cache outage degrades to uncached execution, never fails the job.
			log.Warn("cache unavailable, executing uncached",
				logging.String(logging.FieldEventType, "cache_bypass"),
				logging.String(logging.FieldCacheKey, key.String()),
				logging.Error(err),
			)
			lease = nil
		case entry != nil:
			log.Info("cache hit",
				logging.String(logging.FieldEventType, "cache_hit"),
				logging.String(logging.FieldCacheKey, key.String()),
				logging.String("producer_job", entry.ProducerJob),
			)
			rec.Status = manifest.StatusSkipped
			rec.Outputs = []string{entry.ArtifactRef}
			rec.DurationMS = time.Since(started).Milliseconds()
			rec.RecordedAt = time.Now().UTC()
			return rec, entry.ArtifactRef, nil
		}
	}
	if lease != nil {
		defer lease.Release()
	}

	result, execErr := o.execute(ctx, job, decl, fp, resolved, outputs)
	durationMS := time.Since(started).Milliseconds()

	// Cancellation trumps optionality: an optional stage cut short by job
	// cancellation did not degrade, the job stopped.
	degraded := execErr != nil && decl.Optional && ctx.Err() == nil

	outcome := training.Outcome{DurationMS: durationMS, Metrics: result.Metrics}
	switch {
	case execErr == nil:
		outcome.Status = string(manifest.StatusCompleted)
	case degraded:
		outcome.Status = string(manifest.StatusDegraded)
	default:
		outcome.Status = string(manifest.StatusFailed)
	}
	if o.recorder != nil {
		o.recorder.Record(ctx, job.ID, fp, resolved, outcome)
	}

	if execErr != nil {
		if degraded {
			log.Warn("optional stage degraded",
				logging.String(logging.FieldEventType, "stage_degraded"),
				logging.Error(execErr),
			)
			rec.Status = manifest.StatusDegraded
			rec.Error = execErr.Error()
			rec.DurationMS = durationMS
			rec.RecordedAt = time.Now().UTC()
			return rec, "", nil
		}
		return o.failRecord(rec, started, execErr), "", execErr
	}

	if lease != nil {
		if err := lease.Publish(ctx, result.ArtifactRef, job.ID); err != nil {
			if services.Fatal(err) {
				return o.failRecord(rec, started, err), "", err
			}
			log.Warn("cache publish failed, artifact kept uncached", logging.Error(err))
		}
	}

	log.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String(logging.FieldDecisionSource, string(resolved.Source)),
		logging.Int64("duration_ms", durationMS),
	)
	rec.Status = manifest.StatusCompleted
	rec.Outputs = []string{result.ArtifactRef}
	rec.DurationMS = durationMS
	rec.RecordedAt = time.Now().UTC()
	return rec, result.ArtifactRef, nil
}

func (o *Orchestrator) failRecord(rec manifest.StageRecord, started time.Time, err error) manifest.StageRecord {
	rec.Status = manifest.StatusFailed
	rec.Error = err.Error()
	rec.DurationMS = time.Since(started).Milliseconds()
	rec.RecordedAt = time.Now().UTC()
	return rec
}

// execute runs the collaborator with the configured retry budget. Only
// failures a collaborator marks retryable are retried; everything else is
// terminal on the first attempt.
func (o *Orchestrator) execute(ctx context.Context, job Job, decl stage.Declaration, fp fingerprint.Fingerprint, resolved decision.StageConfig, outputs map[string]string) (stage.Result, error) {
	collab, ok := o.collaborators[decl.ID]
	if !ok {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, decl.ID, "execute",
			"No collaborator registered", nil)
	}

	inputs := make(map[string]string, len(decl.DependsOn))
	for _, dep := range decl.DependsOn {
		inputs[dep] = outputs[dep]
	}
	req := stage.Request{
		JobID:       job.ID,
		MediaRef:    job.MediaRef,
		Fingerprint: fp,
		Config:      resolved,
		Inputs:      inputs,
	}

	attempt := 0
	operation := func() (stage.Result, error) {
		attempt++
		execCtx := ctx
		if o.cfg.Workflow.StageTimeoutSeconds > 0 {
			var cancel context.CancelFunc
			execCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.Workflow.StageTimeoutSeconds)*time.Second)
			defer cancel()
		}
		result, err := collab.Execute(execCtx, req)
		if err == nil {
			return result, nil
		}
		if execCtx.Err() != nil && ctx.Err() == nil {
			err = services.Wrap(services.ErrTimeout, decl.ID, "execute", "Stage exceeded its time budget", err)
		}
		if !stage.Retryable(err) {
			return stage.Result{}, backoff.Permanent(err)
		}
		logging.WithContext(ctx, o.logger).Warn("stage attempt failed, retrying",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Int("attempt", attempt),
			logging.Error(err),
		)
		return stage.Result{}, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.retryInterval
	policy.MaxElapsedTime = 0
	limited := backoff.WithMaxRetries(policy, uint64(o.cfg.Workflow.StageRetryLimit))
	return backoff.RetryWithData(operation, backoff.WithContext(limited, ctx))
}
