package main

import (
	"context"
	"database/sql"
	"fmt"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/artifact"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/docker"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/github"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/service/validate"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/store"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/workspace"
	"github.com/HERMES-SOC/swsoc-processing-lambda/pkg/config"
	"github.com/HERMES-SOC/swsoc-processing-lambda/pkg/logger"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lambdavet",
		Short:         "Validate Lambda container images before deployment",
		Long:          "lambdavet builds a Lambda container image, boots it under the runtime emulator, sends a fixture event and publishes the files the handler produced.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(runCmd(), serveCmd(), renderCmd())
	return cmd
}

// wiring bundles the dependencies both CLI modes share.
type wiring struct {
	cfg     config.ValidatorConfig
	log     *slog.Logger
	docker  *docker.Client
	db      *sql.DB
	service validate.Service
	runs    store.RunStore
}

func (w *wiring) Close() {
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.log.Error("database close failed", "error", err)
		}
	}
	if w.docker != nil {
		if err := w.docker.Close(); err != nil {
			w.log.Error("docker client close failed", "error", err)
		}
	}
}

func buildWiring(ctx context.Context) (*wiring, error) {
	cfg := config.LoadValidatorConfig()
	log := logger.New("lambdavet", logger.ParseLevel(cfg.LogLevel))

	dockerClient, err := docker.New(cfg.DockerHost)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	w := &wiring{cfg: cfg, log: log, docker: dockerClient}

	db, err := store.InitDatabase(cfg.DatabasePath)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("open run database: %w", err)
	}
	w.db = db
	if err := store.RunMigrations(db); err != nil {
		w.Close()
		return nil, fmt.Errorf("migrate run database: %w", err)
	}
	w.runs = store.NewRunSQLiteStore(db)

	workspaceManager, err := workspace.New(cfg.Workdir)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("init workspace %s: %w", cfg.Workdir, err)
	}

	var artifacts artifact.Store
	if cfg.ArtifactBucket != "" {
		s3Store, err := artifact.NewS3Store(ctx, cfg.ArtifactBucket, cfg.ArtifactPrefix, cfg.ArtifactLinkTTL)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("init S3 artifact store: %w", err)
		}
		artifacts = s3Store
	} else {
		localStore, err := artifact.NewLocalStore(cfg.ArtifactDir)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("init local artifact store: %w", err)
		}
		artifacts = localStore
	}

	var commenter validate.Commenter
	if cfg.GitHubToken != "" {
		commenter = github.NewClient(cfg.GitHubAPIURL, cfg.GitHubToken)
	} else {
		log.Info("no GitHub token configured, PR comments disabled")
	}

	w.service = validate.New(dockerClient, workspaceManager, w.runs, artifacts, commenter, log, cfg)
	return w, nil
}
