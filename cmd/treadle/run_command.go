package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"treadle/internal/decision"
	"treadle/internal/fingerprint"
	"treadle/internal/pipeline"
	"treadle/internal/predict"
	"treadle/internal/training"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <job-file>",
		Short: "Run a pipeline job described by a TOML job file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			jf, err := pipeline.LoadJobFile(args[0])
			if err != nil {
				return err
			}

			store, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			if store != nil {
				defer store.Close()
			}

			extractor := fingerprint.NewExtractor(fingerprint.StaticProber{Result: jf.ProbeResult()}, logger)
			rules := predict.NewRules(cfg.Predictor.TierLadder, cfg.Predictor.Heuristics)
			estimator := predict.NewEstimator(predict.EstimatorConfig{
				Endpoint: cfg.Predictor.Endpoint,
				APIKey:   cfg.Predictor.APIKey,
				Timeout:  time.Duration(cfg.Predictor.TimeoutSeconds) * time.Second,
			})
			engine := decision.NewEngine(cfg, predict.NewAdaptive(rules, estimator, logger), logger)

			var recorder *training.Recorder
			if cfg.Paths.TrainingLog != "" {
				recorder = training.NewRecorder(cfg.Paths.TrainingLog, logger)
			}

			orch := pipeline.New(cfg, logger, extractor, engine, store, recorder)
			for stageID, collab := range jf.Collaborators() {
				orch.Register(stageID, collab)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, runErr := orch.Run(runCtx, jf.Job())
			if report != nil {
				printReport(cmd, report)
			}
			return runErr
		},
	}
	return cmd
}

func printReport(cmd *cobra.Command, report *pipeline.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", report.JobID)
	fmt.Fprintf(out, "Outcome:  %s\n", report.Outcome)
	fmt.Fprintf(out, "Manifest: %s\n", report.ManifestPath)
	if len(report.DegradedStages) > 0 {
		fmt.Fprintf(out, "Degraded: %v\n", report.DegradedStages)
	}

	rows := make([][]string, 0, len(report.Stages))
	for _, rec := range report.Stages {
		artifact := ""
		if len(rec.Outputs) > 0 {
			artifact = rec.Outputs[0]
		}
		rows = append(rows, []string{
			rec.StageID,
			string(rec.Status),
			string(rec.Config.Source),
			fmt.Sprintf("%dms", rec.DurationMS),
			artifact,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Status", "Source", "Duration", "Artifact"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
}
