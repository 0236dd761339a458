package decision

import (
	"context"
	"log/slog"
	"strconv"

	"treadle/internal/config"
	"treadle/internal/fingerprint"
	"treadle/internal/logging"
	"treadle/internal/predict"
)

// Engine resolves stage configurations against the configured priority order.
type Engine struct {
	cfg       *config.Config
	predictor predict.Predictor
	logger    *slog.Logger
}

// NewEngine builds a decision engine. predictor may be nil, which disables
// tier 2 entirely.
func NewEngine(cfg *config.Config, predictor predict.Predictor, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		predictor: predictor,
		logger:    logging.NewComponentLogger(logger, "decision"),
	}
}

// Resolve produces the StageConfig for one stage invocation. manual, when
// non-empty, is a caller-supplied override that outranks everything,
// including any override in configuration.
func (e *Engine) Resolve(ctx context.Context, stageID string, fp fingerprint.Fingerprint, manual map[string]string) StageConfig {
	resolved := e.resolve(ctx, stageID, fp, manual)
	e.logger.Debug("stage configuration resolved",
		logging.String(logging.FieldStage, stageID),
		logging.String(logging.FieldDecisionSource, string(resolved.Source)),
		logging.Any("params", resolved.Params),
	)
	return resolved
}

func (e *Engine) resolve(ctx context.Context, stageID string, fp fingerprint.Fingerprint, manual map[string]string) StageConfig {
	// Tier 1: manual override, caller-supplied or configured.
	if len(manual) > 0 {
		return StageConfig{StageID: stageID, Params: cloneParams(manual), Source: SourceOverride}
	}
	override, hasOverride := e.cfg.StageOverride(stageID)
	if hasOverride && len(override.Params) > 0 {
		return StageConfig{StageID: stageID, Params: cloneParams(override.Params), Source: SourceOverride}
	}
	predictorBlocked := hasOverride && override.Force

	// Tier 2: predictor output gated by the confidence threshold (inclusive).
	if e.cfg.Predictor.Enabled && e.predictor != nil && !predictorBlocked {
		prediction := e.predictor.Predict(ctx, fp)
		threshold := e.cfg.Predictor.ConfidenceThreshold
		if prediction.Confidence >= threshold {
			return StageConfig{
				StageID: stageID,
				Params:  predictionParams(prediction),
				Source:  SourcePredicted,
			}
		}
		e.logger.Debug("prediction below confidence threshold",
			logging.String(logging.FieldStage, stageID),
			logging.Float64("confidence", prediction.Confidence),
			logging.Float64("threshold", threshold),
		)
	}

	// Tier 3: configured static default.
	if params, ok := e.cfg.StageDefault(stageID); ok {
		return StageConfig{StageID: stageID, Params: params, Source: SourceDefault}
	}

	// Tier 4: built-in minimal-risk fallback, guaranteed for every stage.
	return StageConfig{StageID: stageID, Params: e.fallbackParams(), Source: SourceFallback}
}

func predictionParams(p predict.Prediction) map[string]string {
	return map[string]string{
		"model_tier":   p.ModelTier,
		"search_width": strconv.Itoa(p.SearchWidth),
		"batch_size":   strconv.Itoa(p.BatchSize),
	}
}

// fallbackParams is the cheapest configuration that is valid for any stage:
// the bottom of the tier ladder with no search widening.
func (e *Engine) fallbackParams() map[string]string {
	tier := "base"
	if ladder := e.cfg.Predictor.TierLadder; len(ladder) > 0 {
		tier = ladder[0]
	}
	return map[string]string{
		"model_tier":   tier,
		"search_width": "1",
		"batch_size":   "1",
	}
}
