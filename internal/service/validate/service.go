// Package validate runs the deployment-validation pipeline: build the Lambda
// container image, boot it under the runtime emulator, send one fixture
// invocation, and publish the produced files when it passes.
package validate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/artifact"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/docker"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/fixture"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/git"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/github"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/imagespec"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/pipeline"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/runtimeapi"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/store"
	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/workspace"
	"github.com/HERMES-SOC/swsoc-processing-lambda/pkg/config"
)

// Pipeline stages, in execution order.
const (
	StageCheckout = "checkout"
	StageRender   = "render"
	StageBuild    = "build"
	StageStart    = "start"
	StageReady    = "ready"
	StageInvoke   = "invoke"
	StageCollect  = "collect"
	StagePublish  = "publish"
	StageComment  = "comment"
)

// TriggerManual marks runs started from the CLI rather than a webhook.
const TriggerManual = "manual"

const logTailLines = 80

// Request describes one validation run.
type Request struct {
	RunID    string
	Trigger  string
	RepoURL  string
	RepoName string
	Ref      string
	PRNumber int
	// SourceDir points at a local tree to validate; when set, checkout is
	// skipped. Used by the CLI.
	SourceDir string
	// EphemeralPort lets Docker pick the host port so concurrent runs never
	// collide. Webhook-triggered runs always set this.
	EphemeralPort bool
}

// Outcome summarizes a finished (or queued) run.
type Outcome struct {
	RunID       string          `json:"run_id"`
	Status      store.RunStatus `json:"status"`
	Stage       string          `json:"stage,omitempty"`
	Image       string          `json:"image,omitempty"`
	ArtifactURL string          `json:"artifact_url,omitempty"`
	Commented   bool            `json:"commented,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Commenter posts the artifact link back to the originating pull request.
type Commenter interface {
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
}

// Service coordinates validation runs using Docker.
type Service struct {
	docker    *docker.Client
	workspace *workspace.Manager
	runs      store.RunStore
	artifacts artifact.Store
	commenter Commenter
	logger    *slog.Logger
	cfg       config.ValidatorConfig
}

// New creates a validation service. commenter may be nil, which disables the
// comment stage entirely.
func New(cli *docker.Client, ws *workspace.Manager, runs store.RunStore, artifacts artifact.Store, commenter Commenter, logger *slog.Logger, cfg config.ValidatorConfig) Service {
	return Service{
		docker:    cli,
		workspace: ws,
		runs:      runs,
		artifacts: artifacts,
		commenter: commenter,
		logger:    logger,
		cfg:       cfg,
	}
}

// Health verifies the service's docker dependency is reachable.
func (s Service) Health(ctx context.Context) error {
	if s.docker == nil {
		return errors.New("docker client not initialised")
	}
	return s.docker.Ping(ctx)
}

// Handle queues a run and executes it in the background. Serve-mode entry
// point: the webhook response must not wait for a container build.
func (s Service) Handle(ctx context.Context, req Request) (Outcome, error) {
	req, err := s.prepareRequest(req)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.docker.Ping(ctx); err != nil {
		return Outcome{}, err
	}
	if err := s.createRun(ctx, req); err != nil {
		return Outcome{}, err
	}
	s.logger.Info("validation queued", "run_id", req.RunID, "trigger", req.Trigger, "repo", req.RepoName, "ref", req.Ref)

	go func() {
		if _, err := s.execute(context.Background(), req); err != nil {
			s.logger.Error("validation failed", "run_id", req.RunID, "error", err)
		}
	}()

	return Outcome{
		RunID:     req.RunID,
		Status:    store.StatusQueued,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Run executes a validation synchronously and reports the outcome. CLI entry
// point: the exit code is the validation verdict.
func (s Service) Run(ctx context.Context, req Request) (Outcome, error) {
	req, err := s.prepareRequest(req)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.createRun(ctx, req); err != nil {
		return Outcome{}, err
	}
	return s.execute(ctx, req)
}

func (s Service) prepareRequest(req Request) (Request, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	if req.SourceDir == "" && strings.TrimSpace(req.RepoURL) == "" {
		return Request{}, fmt.Errorf("either a source directory or a repository URL is required")
	}
	if s.workspace == nil {
		return Request{}, fmt.Errorf("workspace manager not initialised")
	}
	return req, nil
}

func (s Service) createRun(ctx context.Context, req Request) error {
	repo := req.RepoName
	if repo == "" {
		repo = req.RepoURL
	}
	return s.runs.CreateRun(ctx, &store.Run{
		RunID:        req.RunID,
		TriggerEvent: req.Trigger,
		Repo:         repo,
		Ref:          req.Ref,
		PRNumber:     int64(req.PRNumber),
		Mission:      s.cfg.Mission,
		Status:       store.StatusQueued,
	})
}

func (s Service) execute(rootCtx context.Context, req Request) (Outcome, error) {
	ctx, cancel := context.WithTimeout(rootCtx, s.cfg.RunTimeout)
	defer cancel()

	started := time.Now().UTC()
	s.stage(ctx, req.RunID, StageCheckout, &started)

	ws, err := s.workspace.Prepare(req.RunID)
	if err != nil {
		return s.fail(req, StageCheckout, err)
	}
	defer func() {
		if err := s.workspace.Cleanup(ws.Root); err != nil {
			s.logger.Error("workspace cleanup failed", "run_id", req.RunID, "error", err)
		}
	}()

	srcDir := req.SourceDir
	if srcDir == "" {
		gitCtx, cancelGit := context.WithTimeout(ctx, s.cfg.GitTimeout)
		defer cancelGit()
		if err := git.Clone(gitCtx, req.RepoURL, req.Ref, ws.Source); err != nil {
			return s.fail(req, StageCheckout, err)
		}
		srcDir = ws.Source
	}

	def, err := pipeline.Load(srcDir)
	if err != nil {
		return s.fail(req, StageCheckout, err)
	}
	payload, err := fixture.Load(filepath.Join(srcDir, filepath.FromSlash(def.Fixture)))
	if err != nil {
		return s.fail(req, StageCheckout, err)
	}

	s.stage(ctx, req.RunID, StageRender, nil)
	generated, err := imagespec.Materialize(srcDir, def.Image)
	if err != nil {
		return s.fail(req, StageRender, err)
	}
	if generated {
		s.logger.Info("image recipe generated", "run_id", req.RunID, "handler", def.Image.WithDefaults().Handler)
	}

	s.stage(ctx, req.RunID, StageBuild, nil)
	imageTag := imageTag(req)
	buildCtx, cancelBuild := context.WithTimeout(ctx, s.cfg.BuildTimeout)
	defer cancelBuild()
	tail := newLogTail(logTailLines)
	buildLog := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		tail.Add(line)
		s.logger.Debug("docker build output", "run_id", req.RunID, "line", line)
	}
	if err := s.docker.BuildImage(buildCtx, srcDir, imageTag, nil, buildLog); err != nil {
		return s.failWithOutput(req, StageBuild, tail.String(), err)
	}
	if err := s.runs.UpdateRunImage(ctx, req.RunID, imageTag); err != nil {
		s.logger.Warn("record image tag failed", "run_id", req.RunID, "error", err)
	}
	s.logger.Info("image built", "run_id", req.RunID, "image", imageTag)

	s.stage(ctx, req.RunID, StageStart, nil)
	containerName := containerName(req.RunID)
	if err := s.docker.RemoveContainer(ctx, containerName); err != nil {
		s.logger.Warn("remove existing container failed", "run_id", req.RunID, "error", err)
	}
	portKey := nat.Port(fmt.Sprintf("%d/tcp", pipeline.ContainerPort))
	binding := nat.PortBinding{HostIP: "127.0.0.1"}
	if !req.EphemeralPort {
		binding.HostPort = strconv.Itoa(def.HostPort)
	}
	info, err := s.docker.RunContainer(ctx, containerName, imageTag, nil, def.ContainerEnv(), nat.PortMap{portKey: []nat.PortBinding{binding}})
	if err != nil {
		return s.fail(req, StageStart, err)
	}
	defer func() {
		removeCtx, cancelRemove := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelRemove()
		if err := s.docker.RemoveContainer(removeCtx, containerName); err != nil {
			s.logger.Warn("container cleanup failed", "run_id", req.RunID, "error", err)
		}
	}()

	host, port, err := resolveBinding(info, portKey)
	if err != nil {
		return s.failWithLogs(ctx, req, StageStart, info.ID, err)
	}
	s.logger.Info("container started", "run_id", req.RunID, "container_id", info.ID, "addr", host+":"+port)

	s.stage(ctx, req.RunID, StageReady, nil)
	client := runtimeapi.New(host, port, s.cfg.InvokeTimeout)
	if err := client.WaitReady(ctx, s.cfg.ReadyAttempts, s.cfg.ReadyInterval); err != nil {
		return s.failWithLogs(ctx, req, StageReady, info.ID, err)
	}

	s.stage(ctx, req.RunID, StageInvoke, nil)
	res, err := client.Invoke(ctx, payload)
	if err != nil {
		return s.failWithLogs(ctx, req, StageInvoke, info.ID, err)
	}
	if !res.Success() {
		err := fmt.Errorf("invocation failed: transport status %d, handler status %d, error type %q",
			res.TransportStatus, res.HandlerStatus, res.ErrorType)
		return s.failWithLogs(ctx, req, StageInvoke, info.ID, err)
	}
	s.logger.Info("invocation succeeded", "run_id", req.RunID, "transport_status", res.TransportStatus, "handler_status", res.HandlerStatus)

	s.stage(ctx, req.RunID, StageCollect, nil)
	rc, err := s.docker.CopyFromContainer(ctx, info.ID, def.OutputDir)
	if err != nil {
		return s.failWithLogs(ctx, req, StageCollect, info.ID, err)
	}
	files, err := artifact.Extract(rc, ws.Output)
	rc.Close()
	if err != nil {
		return s.failWithLogs(ctx, req, StageCollect, info.ID, err)
	}
	if len(files) == 0 {
		return s.failWithLogs(ctx, req, StageCollect, info.ID, fmt.Errorf("output directory %s is empty", def.OutputDir))
	}

	s.stage(ctx, req.RunID, StagePublish, nil)
	artifactName := fmt.Sprintf("%s-%s", def.ArtifactName, shortID(req.RunID))
	link, err := s.artifacts.Upload(ctx, artifactName, ws.Output, files)
	if err != nil {
		return s.fail(req, StagePublish, err)
	}
	s.logger.Info("artifact published", "run_id", req.RunID, "artifact", artifactName, "files", len(files))

	ended := time.Now().UTC()
	summary := fmt.Sprintf("validated %d file(s) from %s", len(files), def.OutputDir)
	if err := s.runs.CompleteRun(context.Background(), req.RunID, store.StatusSucceeded, StagePublish, &summary, &artifactName, &link, ended); err != nil {
		s.logger.Warn("record run completion failed", "run_id", req.RunID, "error", err)
	}

	out := Outcome{
		RunID:       req.RunID,
		Status:      store.StatusSucceeded,
		Stage:       StagePublish,
		Image:       imageTag,
		ArtifactURL: link,
		Timestamp:   ended,
	}

	if s.commenter == nil || !shouldComment(req) {
		return out, nil
	}
	out.Stage = StageComment
	owner, repo, err := splitRepoName(req.RepoName)
	if err != nil {
		return out, err
	}
	if err := s.commenter.CreateComment(ctx, owner, repo, req.PRNumber, commentBody(req, artifactName, link)); err != nil {
		s.logger.Error("posting result comment failed", "run_id", req.RunID, "error", err)
		return out, fmt.Errorf("post result comment: %w", err)
	}
	out.Commented = true
	s.logger.Info("result comment posted", "run_id", req.RunID, "pr", req.PRNumber)
	return out, nil
}

func (s Service) stage(ctx context.Context, runID, stage string, startedOn *time.Time) {
	if err := s.runs.UpdateRunStage(ctx, runID, stage, startedOn); err != nil {
		s.logger.Warn("record stage transition failed", "run_id", runID, "stage", stage, "error", err)
	}
}

func (s Service) fail(req Request, stage string, err error) (Outcome, error) {
	return s.failWithOutput(req, stage, "", err)
}

func (s Service) failWithOutput(req Request, stage, output string, err error) (Outcome, error) {
	s.logger.Error("validation stage failed", "run_id", req.RunID, "stage", stage, "error", err)
	text := strings.TrimSpace(output)
	if text != "" {
		text += "\n"
	}
	text += fmt.Sprintf("%s failed: %v", stage, err)
	ended := time.Now().UTC()
	if dbErr := s.runs.CompleteRun(context.Background(), req.RunID, store.StatusFailed, stage, &text, nil, nil, ended); dbErr != nil {
		s.logger.Warn("record run failure failed", "run_id", req.RunID, "error", dbErr)
	}
	return Outcome{
		RunID:     req.RunID,
		Status:    store.StatusFailed,
		Stage:     stage,
		Timestamp: ended,
	}, fmt.Errorf("%s: %w", stage, err)
}

// failWithLogs dumps the container's log tail into the run record before
// marking it failed, which is the only diagnosis surface a dead container
// leaves behind.
func (s Service) failWithLogs(ctx context.Context, req Request, stage, containerID string, err error) (Outcome, error) {
	logs := ""
	if containerID != "" {
		logCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		out, logErr := s.docker.ContainerLogs(logCtx, containerID, logTailLines)
		if logErr != nil {
			s.logger.Warn("fetch container logs failed", "run_id", req.RunID, "error", logErr)
		} else {
			logs = out
		}
	}
	return s.failWithOutput(req, stage, logs, err)
}

func resolveBinding(info docker.ContainerInfo, portKey nat.Port) (string, string, error) {
	bindings := info.PortBinding[portKey]
	if len(bindings) == 0 {
		return "", "", fmt.Errorf("container has no host binding for %s", portKey)
	}
	binding := bindings[0]
	if strings.TrimSpace(binding.HostPort) == "" {
		return "", "", fmt.Errorf("container has no host port for %s", portKey)
	}
	host := binding.HostIP
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return host, binding.HostPort, nil
}

// shouldComment preserves the original trigger quirk: runs start on both
// pull_request and pull_request_target events, but only the target variant
// gets a comment.
func shouldComment(req Request) bool {
	return req.Trigger == github.EventPullRequestTarget && req.PRNumber > 0 && req.RepoName != ""
}

func splitRepoName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed repository name %q", fullName)
	}
	return parts[0], parts[1], nil
}

func commentBody(req Request, artifactName, link string) string {
	var b strings.Builder
	b.WriteString("Lambda image validation passed")
	if req.Ref != "" {
		b.WriteString(" for `" + req.Ref + "`")
	}
	b.WriteString(".\n\n")
	b.WriteString(fmt.Sprintf("Processed files artifact: [%s](%s)\n", artifactName, link))
	return b.String()
}

func containerName(runID string) string {
	return "lambdavet-" + shortID(runID)
}

func shortID(runID string) string {
	id := strings.ReplaceAll(runID, "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func imageTag(req Request) string {
	name := req.RepoName
	if name == "" {
		name = "local"
	}
	return fmt.Sprintf("lambdavet/%s:%s", sanitizeTagPart(name), shortID(req.RunID))
}

func sanitizeTagPart(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "local"
	}
	return out
}
