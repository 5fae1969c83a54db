package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"paas-deployer/internal/config"
	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/artifact"
	"paas-deployer/internal/pkg/descriptor"
	"paas-deployer/internal/pkg/git"
	"paas-deployer/internal/pkg/lock"
	"paas-deployer/internal/pkg/logger"
	"paas-deployer/internal/pkg/metrics"
	sshclient "paas-deployer/internal/pkg/ssh"
	"paas-deployer/internal/pkg/workspace"
	"paas-deployer/pkg/utils"
)

// workdirName is the directory under an application's workspace that holds
// the clone or the downloaded binary.
const workdirName = "openshift"

// DeployService coordinates one deployment: validation, artifact
// resolution, target lookup and the mode's strategy.
type DeployService struct {
	cfg        *config.Config
	provider   model.ApplicationProvider
	workspaces *workspace.Manager
	locks      *lock.Manager
	strategies map[model.DeployMode]Strategy
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewDeployService(cfg *config.Config, provider model.ApplicationProvider, m *metrics.Metrics, log *logger.Logger) (*DeployService, error) {
	workspaces, err := workspace.New(cfg.Deploy.Workdir)
	if err != nil {
		return nil, err
	}
	locks, err := lock.NewManager(filepath.Join(workspaces.Root(), ".locks"))
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := sshclient.HostKeyCallback(cfg.SSH.HostKeyPolicy, cfg.SSH.KnownHostsPath)
	if err != nil {
		return nil, err
	}

	fetcher := artifact.NewFetcher(cfg.Deploy.DownloadTimeout.Duration)
	author := git.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}

	return &DeployService{
		cfg:        cfg,
		provider:   provider,
		workspaces: workspaces,
		locks:      locks,
		strategies: map[model.DeployMode]Strategy{
			model.ModeArchive: NewGitDeployer(cfg.SSH.PrivateKeyPath(), hostKeyCallback, author, fetcher, log),
			model.ModeBinary:  NewBinaryDeployer(cfg.SSH, fetcher, log),
		},
		metrics: m,
		logger:  log,
	}, nil
}

// Deploy runs one deployment attempt. The returned result is always
// non-nil; on failure it carries the error message and err is the typed
// error.
func (s *DeployService) Deploy(ctx context.Context, req *model.DeployRequest, sink logger.Sink) (*model.DeployResult, error) {
	if sink == nil {
		sink = logger.Nop
	}
	rec := newTrackedSink(sink)
	result := &model.DeployResult{}
	start := time.Now()

	mode, err := model.ParseDeployMode(req.Mode)
	if err == nil {
		err = s.deploy(ctx, req, mode, rec, result)
	} else {
		err = utils.NewInvalidInputError("deployment mode", req.Mode)
	}

	if err != nil {
		rec.Error(err.Error())
		result.Success = false
		result.Error = err.Error()
	} else {
		result.Success = true
		reportProgress(rec, "done", 100)
	}
	result.Steps = rec.Steps()

	s.metrics.RecordDeployment(mode.String(), err == nil, time.Since(start))
	return result, err
}

func (s *DeployService) deploy(ctx context.Context, req *model.DeployRequest, mode model.DeployMode, sink logger.Sink, result *model.DeployResult) error {
	reportProgress(sink, "validate", 5)
	env, err := s.validate(req)
	if err != nil {
		return err
	}
	cartridges := utils.SplitCartridges(req.Cartridges)

	controlDir, err := descriptor.Locate(s.absolute(req.Workspace, req.ControlDir))
	if err != nil {
		return err
	}

	if err := s.locks.TryLock(ctx, req.AppName, s.cfg.Deploy.LockTimeout.Duration); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return utils.NewBusyError(req.AppName)
		}
		return utils.NewSystemError(err)
	}
	defer s.locks.Unlock(req.AppName)

	reportProgress(sink, "resolve", 15)
	resolver := &artifact.Resolver{
		BaseDir: req.Workspace,
		Vars:    s.tokens(req),
		Sink:    sink,
	}
	ref, err := resolver.Resolve(req.DeploymentPath, mode)
	if err != nil {
		return err
	}
	sink.Info(fmt.Sprintf("Deployments found: %s", strings.Join(ref.Locations, ", ")))
	s.metrics.RecordArtifacts(mode.String(), len(ref.Locations))

	reportProgress(sink, "application", 25)
	app, err := s.provider.GetOrCreate(ctx, model.ApplicationSpec{
		Name:        req.AppName,
		Domain:      req.Domain,
		Cartridges:  cartridges,
		GearProfile: req.GearProfile,
		Env:         env,
		AutoScale:   req.AutoScale,
	})
	if err != nil {
		return err
	}

	reportProgress(sink, "workspace", 30)
	workdir, err := s.workspaces.Prepare(filepath.Join(req.AppName, workdirName))
	if err != nil {
		return utils.NewSystemError(err)
	}

	job := &Job{
		App:           app,
		Artifacts:     ref,
		Workdir:       workdir,
		Cartridges:    cartridges,
		ControlDir:    controlDir,
		Markers:       markers(req),
		CommitMessage: s.commitMessage(req),
		Sink:          sink,
	}
	if err := s.strategies[mode].Deploy(ctx, job); err != nil {
		s.logger.Warnw("deployment failed", "app", req.AppName, "mode", mode, "state", job.FailedAfter)
		return err
	}

	result.ApplicationURL = app.ApplicationURL()
	sink.Info("Application deployed to " + app.ApplicationURL())
	return nil
}

func (s *DeployService) validate(req *model.DeployRequest) (map[string]string, error) {
	if utils.IsEmpty(req.AppName) {
		return nil, utils.NewValidationError("Application name", req.AppName)
	}
	if utils.IsEmpty(req.Cartridges) {
		return nil, utils.NewValidationError("Cartridges", req.Cartridges)
	}
	if utils.IsEmpty(req.DeploymentPath) {
		return nil, utils.NewValidationError("Deployment path", req.DeploymentPath)
	}
	if strings.ContainsAny(req.AppName, `/\`) || strings.Contains(req.AppName, "..") {
		return nil, utils.NewInvalidInputError("application name", req.AppName)
	}
	return utils.ParseEnvVars(req.EnvironmentVariables)
}

// absolute anchors path at base unless it is empty or already absolute.
func (s *DeployService) absolute(base, path string) string {
	if utils.IsEmpty(path) || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

func (s *DeployService) tokens(req *model.DeployRequest) map[string]string {
	return map[string]string{
		"BUILD_NUMBER": req.BuildID,
		"BUILD_ID":     req.BuildID,
		"APP_NAME":     req.AppName,
	}
}

func (s *DeployService) commitMessage(req *model.DeployRequest) string {
	template := s.cfg.Git.CommitTemplate
	if !utils.IsEmpty(req.CommitMessage) {
		template = req.CommitMessage
	}
	build := req.BuildID
	if build == "" {
		build = time.Now().UTC().Format("20060102T150405Z")
	}
	return strings.ReplaceAll(template, "{build}", build)
}

func markers(req *model.DeployRequest) []string {
	var names []string
	if req.EnableJava7 {
		names = append(names, descriptor.MarkerJava7)
	}
	if req.EnableJPDA {
		names = append(names, descriptor.MarkerJPDA)
	}
	return names
}
