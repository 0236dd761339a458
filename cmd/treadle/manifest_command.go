package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"treadle/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect job manifests",
	}

	manifestCmd.AddCommand(newManifestShowCommand(ctx))

	return manifestCmd
}

func newManifestShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id | path>",
		Short: "Replay a job manifest and print its stage trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveManifestPath(ctx, args[0])
			if err != nil {
				return err
			}
			m, err := manifest.Replay(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:         %s\n", m.JobID)
			fmt.Fprintf(out, "Media:       %s\n", m.MediaRef)
			fmt.Fprintf(out, "Fingerprint: %s\n", m.Fingerprint)
			if m.Sealed {
				fmt.Fprintf(out, "Outcome:     %s\n", m.Outcome)
			} else {
				fmt.Fprintln(out, "Outcome:     (unsealed; job was interrupted)")
			}

			rows := make([][]string, 0, len(m.Records))
			for _, rec := range m.Records {
				detail := rec.Error
				if detail == "" && len(rec.Outputs) > 0 {
					detail = rec.Outputs[0]
				}
				rows = append(rows, []string{
					rec.StageID,
					string(rec.Status),
					string(rec.Config.Source),
					fmt.Sprintf("%dms", rec.DurationMS),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Status", "Source", "Duration", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))

			if keys := m.CompletedKeys(); len(keys) > 0 {
				fmt.Fprintf(out, "Satisfied cache keys (%d):\n", len(keys))
				for _, key := range keys {
					fmt.Fprintf(out, "  %s\n", key)
				}
			}
			return nil
		},
	}
}

// resolveManifestPath accepts either a path to a manifest file or a job ID
// looked up in the configured manifest directory.
func resolveManifestPath(ctx *commandContext, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("job id or manifest path is required")
	}
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(cfg.Paths.ManifestDir, arg+".manifest.jsonl")
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("no manifest found for %q (looked at %s)", arg, candidate)
	}
	return candidate, nil
}
