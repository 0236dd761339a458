package fingerprint

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"treadle/internal/logging"
	"treadle/internal/services"
)

// ProbeResult carries the raw signals a Prober measured from a media input.
type ProbeResult struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	SNR             float64
	SpeakerCount    int
	Complexity      float64
}

// Prober measures media signals. Implementations wrap external probing tools
// and must be side-effect free beyond reading the input.
type Prober interface {
	Probe(ctx context.Context, mediaRef string) (ProbeResult, error)
}

// StaticProber returns a fixed measurement, for callers that already hold
// the probe results (job files, tests).
type StaticProber struct {
	Result ProbeResult
}

func (p StaticProber) Probe(context.Context, string) (ProbeResult, error) {
	return p.Result, nil
}

// Extractor turns probe results into immutable fingerprints.
type Extractor struct {
	prober Prober
	logger *slog.Logger
}

// NewExtractor builds an extractor around the supplied prober.
func NewExtractor(prober Prober, logger *slog.Logger) *Extractor {
	return &Extractor{
		prober: prober,
		logger: logging.NewComponentLogger(logger, "fingerprint"),
	}
}

// Extract probes mediaRef and derives its fingerprint. The declared language
// is normalized to a canonical BCP 47 tag so spelling variants ("EN",
// "en-us") fingerprint identically. Fails with the input-unreadable sentinel
// when the media cannot be probed.
func (e *Extractor) Extract(ctx context.Context, mediaRef, declaredLanguage string) (Fingerprint, error) {
	if strings.TrimSpace(mediaRef) == "" {
		return Fingerprint{}, services.Wrap(services.ErrInputUnreadable, "fingerprint", "extract", "empty media reference", nil)
	}
	if e.prober == nil {
		return Fingerprint{}, services.Wrap(services.ErrConfiguration, "fingerprint", "extract", "no prober configured", nil)
	}

	result, err := e.prober.Probe(ctx, mediaRef)
	if err != nil {
		return Fingerprint{}, services.Wrap(services.ErrInputUnreadable, "fingerprint", "probe", mediaRef, err)
	}

	fp := Fingerprint{
		DurationSeconds: result.DurationSeconds,
		SampleRate:      result.SampleRate,
		Channels:        result.Channels,
		SNR:             result.SNR,
		SpeakerCount:    result.SpeakerCount,
		Complexity:      clamp01(result.Complexity),
		Language:        NormalizeLanguage(declaredLanguage),
	}

	e.logger.Debug("fingerprint extracted",
		logging.String("media_ref", mediaRef),
		logging.String("fingerprint_hash", fp.Hash()),
		logging.Float64("duration_seconds", fp.DurationSeconds),
		logging.Int("speaker_count", fp.SpeakerCount),
		logging.Float64("complexity", fp.Complexity),
		logging.String("language", fp.Language),
	)
	return fp, nil
}

// NormalizeLanguage canonicalizes a declared language to its BCP 47 form.
// Unparseable values collapse to trimmed lower case so the fingerprint stays
// deterministic either way.
func NormalizeLanguage(declared string) string {
	trimmed := strings.TrimSpace(declared)
	if trimmed == "" {
		return "und"
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return tag.String()
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
