package predict

import (
	"context"
	"log/slog"

	"treadle/internal/fingerprint"
	"treadle/internal/logging"
)

// Prediction is a recommended stage parameterization plus the predictor's own
// assessment of it. Confidence is reproducible for an identical fingerprint
// and predictor version.
type Prediction struct {
	ModelTier       string  `json:"model_tier"`
	SearchWidth     int     `json:"search_width"`
	BatchSize       int     `json:"batch_size"`
	Confidence      float64 `json:"confidence"`
	ExpectedQuality float64 `json:"expected_quality"`
	Reasoning       string  `json:"reasoning"`
}

// Predictor produces a Prediction for a fingerprint. Implementations must be
// total: a valid Prediction comes back in all cases.
type Predictor interface {
	Predict(ctx context.Context, fp fingerprint.Fingerprint) Prediction
}

// fallbackConfidenceCap bounds the confidence reported when the learned
// estimator failed and the rule table answered in its place.
const fallbackConfidenceCap = 0.6

// Adaptive composes the learned estimator with the rule table.
type Adaptive struct {
	rules     Rules
	estimator *Estimator
	logger    *slog.Logger
}

// NewAdaptive builds the composite predictor. estimator may be nil, in which
// case the rule table answers directly with no confidence cap.
func NewAdaptive(rules Rules, estimator *Estimator, logger *slog.Logger) *Adaptive {
	return &Adaptive{
		rules:     rules,
		estimator: estimator,
		logger:    logging.NewComponentLogger(logger, "predict"),
	}
}

// Predict never fails. Estimator errors are logged and absorbed by falling
// back to the rule table.
func (a *Adaptive) Predict(ctx context.Context, fp fingerprint.Fingerprint) Prediction {
	if a.estimator == nil {
		return a.rules.Predict(ctx, fp)
	}

	learned, err := a.estimator.Estimate(ctx, fp)
	if err == nil {
		err = a.rules.validateTier(learned.ModelTier)
		if err == nil {
			return learned
		}
	}

	a.logger.Warn("estimator unavailable, using rule table",
		logging.Error(err),
		logging.String(logging.FieldEventType, "predictor_fallback"),
		logging.String(logging.FieldErrorHint, "check predictor.endpoint configuration"),
	)

	fallback := a.rules.Predict(ctx, fp)
	if fallback.Confidence > fallbackConfidenceCap {
		fallback.Confidence = fallbackConfidenceCap
	}
	fallback.Reasoning = "estimator unavailable (" + err.Error() + "); rule table fallback: " + fallback.Reasoning
	return fallback
}
