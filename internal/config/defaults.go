package config

const (
	defaultDataDir             = "~/.local/share/treadle"
	defaultLogDir              = "~/.local/share/treadle/logs"
	defaultManifestDir         = "~/.local/share/treadle/manifests"
	defaultTrainingLog         = "~/.local/share/treadle/training/decisions.jsonl"
	defaultCacheDir            = "~/.cache/treadle/artifacts"
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
	defaultConfidenceThreshold = 0.7
	defaultPredictorTimeout    = 15
	defaultStageRetryLimit     = 2
	defaultStageTimeoutSeconds = 0 // no per-stage timeout unless configured

	defaultLowSNR              = 18.0
	defaultHighSpeakerCount    = 2
	defaultHighComplexity      = 0.6
	defaultLongDurationSeconds = 3600.0
	defaultMaxSearchWidth      = 8
	defaultMaxBatchSize        = 32
)

func defaultTierLadder() []string {
	return []string{"tiny", "small", "medium", "large"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			ManifestDir: defaultManifestDir,
			TrainingLog: defaultTrainingLog,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Cache: Cache{
			Enabled: true,
			Dir:     defaultCacheDir,
		},
		Predictor: Predictor{
			Enabled:             true,
			ConfidenceThreshold: defaultConfidenceThreshold,
			TimeoutSeconds:      defaultPredictorTimeout,
			TierLadder:          defaultTierLadder(),
			Heuristics: Heuristics{
				LowSNR:              defaultLowSNR,
				HighSpeakerCount:    defaultHighSpeakerCount,
				HighComplexity:      defaultHighComplexity,
				LongDurationSeconds: defaultLongDurationSeconds,
				MaxSearchWidth:      defaultMaxSearchWidth,
				MaxBatchSize:        defaultMaxBatchSize,
			},
		},
		Workflow: Workflow{
			StageRetryLimit:     defaultStageRetryLimit,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
		},
	}
}
