package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/service/validate"
)

func runCmd() *cobra.Command {
	var (
		sourceDir string
		repoURL   string
		repoName  string
		ref       string
		prNumber  int
		trigger   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one validation and exit with its verdict",
		Long:  "Builds the image from a local tree or a repository URL, invokes it once with the fixture event and publishes the produced files. Exits non-zero when validation fails.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if sourceDir != "" {
				abs, err := filepath.Abs(sourceDir)
				if err != nil {
					return fmt.Errorf("resolve source dir: %w", err)
				}
				sourceDir = abs
			}

			w, err := buildWiring(ctx)
			if err != nil {
				return err
			}
			defer w.Close()

			if err := w.docker.Ping(ctx); err != nil {
				return fmt.Errorf("docker ping: %w", err)
			}

			outcome, err := w.service.Run(ctx, validate.Request{
				Trigger:   trigger,
				RepoURL:   repoURL,
				RepoName:  repoName,
				Ref:       ref,
				PRNumber:  prNumber,
				SourceDir: sourceDir,
			})
			if err != nil {
				return err
			}
			w.log.Info("validation succeeded",
				"run_id", outcome.RunID,
				"image", outcome.Image,
				"artifact_url", outcome.ArtifactURL,
				"commented", outcome.Commented,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", "", "local source tree to validate (skips checkout)")
	cmd.Flags().StringVar(&repoURL, "repo-url", "", "repository clone URL")
	cmd.Flags().StringVar(&repoName, "repo", "", "repository full name (owner/name), used for image tags and comments")
	cmd.Flags().StringVar(&ref, "ref", "", "git ref or commit SHA to check out")
	cmd.Flags().IntVar(&prNumber, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&trigger, "trigger", validate.TriggerManual, "trigger event name recorded with the run")
	cmd.MarkFlagsOneRequired("source", "repo-url")

	return cmd
}
