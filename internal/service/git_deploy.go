package service

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"paas-deployer/internal/pkg/artifact"
	"paas-deployer/internal/pkg/descriptor"
	"paas-deployer/internal/pkg/git"
	"paas-deployer/internal/pkg/logger"
	"paas-deployer/pkg/utils"
)

// GitDeployer replaces the content of the application's Git repository with
// the artifacts and pushes the result, which triggers the remote build.
type GitDeployer struct {
	privateKeyPath  string
	hostKeyCallback ssh.HostKeyCallback
	author          git.Author
	fetcher         *artifact.Fetcher
	logger          *logger.Logger
}

func NewGitDeployer(privateKeyPath string, hostKeyCallback ssh.HostKeyCallback, author git.Author, fetcher *artifact.Fetcher, log *logger.Logger) *GitDeployer {
	return &GitDeployer{
		privateKeyPath:  privateKeyPath,
		hostKeyCallback: hostKeyCallback,
		author:          author,
		fetcher:         fetcher,
		logger:          log,
	}
}

type gitStep struct {
	name     string
	reaches  State
	progress int
	run      func(*GitDeployer, context.Context, *gitRun) error
}

var gitSteps = []gitStep{
	{"clone", StateCloned, 45, (*GitDeployer).clone},
	{"clean", StateCleaned, 55, (*GitDeployer).clean},
	{"populate", StatePopulated, 65, (*GitDeployer).populate},
	{"commit", StateCommitted, 75, (*GitDeployer).commit},
	{"push", StatePushed, 90, (*GitDeployer).push},
}

// gitRun carries the clone between steps.
type gitRun struct {
	*Job
	repo *git.Repository
}

func (d *GitDeployer) Deploy(ctx context.Context, job *Job) error {
	run := &gitRun{Job: job}
	job.advance(StateInit)

	for _, step := range gitSteps {
		d.logger.DeploymentStep(step.name, job.App.Name())
		reportProgress(job.Sink, step.name, step.progress)

		if err := step.run(d, ctx, run); err != nil {
			job.fail()
			d.logger.DeploymentError(step.name, err)
			return utils.NewDeployError(step.name, err)
		}
		job.advance(step.reaches)
		d.logger.DeploymentSuccess(step.name)
	}

	job.advance(StateDone)
	return nil
}

func (d *GitDeployer) clone(ctx context.Context, r *gitRun) error {
	r.Sink.Info(fmt.Sprintf("Cloning '%s' [%s] to %s", r.App.Name(), r.App.GitURL(), r.Workdir))
	if utils.IsEmpty(r.App.GitURL()) {
		return utils.NewValidationError("Git URL of "+r.App.Name(), "")
	}

	repo, err := git.Clone(ctx, r.App.GitURL(), r.Workdir, git.Options{
		PrivateKeyPath:  d.privateKeyPath,
		HostKeyCallback: d.hostKeyCallback,
		Progress:        r.Sink.Writer(),
	})
	logger.Flush(r.Sink.Writer())
	if err != nil {
		return utils.NewTransportError("git clone", err)
	}
	r.repo = repo
	return nil
}

func (d *GitDeployer) clean(_ context.Context, r *gitRun) error {
	removed, err := r.repo.Clean(descriptor.ControlDir)
	for _, name := range removed {
		r.Sink.Info(fmt.Sprintf("Deleting '%s'", name))
	}
	if err != nil {
		return utils.NewSystemError(err)
	}
	return nil
}

func (d *GitDeployer) populate(ctx context.Context, r *gitRun) error {
	subdir := artifact.DeploySubdir(r.Cartridges)
	dest := filepath.Join(r.repo.Dir(), subdir)

	if r.Artifacts.Single() {
		location := r.Artifacts.Locations[0]
		name := artifact.RootDeploymentName(location)
		if artifact.IsURL(location) {
			r.Sink.Info(fmt.Sprintf("Downloading the deployment package to '%s'", name))
		} else {
			r.Sink.Info(fmt.Sprintf("Copying the deployment package '%s' to '%s'", artifact.BaseName(location), name))
		}
		if err := d.fetch(ctx, location, filepath.Join(dest, name)); err != nil {
			return err
		}
	} else {
		for _, location := range r.Artifacts.Locations {
			name := artifact.BaseName(location)
			r.Sink.Info(fmt.Sprintf("Copying '%s' to '%s'", name, subdir))
			if err := d.fetch(ctx, location, filepath.Join(dest, name)); err != nil {
				return err
			}
		}
	}

	if r.ControlDir != "" {
		merged, err := descriptor.Merge(r.ControlDir, r.repo.Dir())
		if err != nil {
			return utils.NewSystemError(err)
		}
		for _, name := range merged {
			r.Sink.Info(fmt.Sprintf("Merged '%s' into %s", name, descriptor.ControlDir))
		}
	}

	markers, err := descriptor.SetMarkers(r.repo.Dir(), r.Markers...)
	if err != nil {
		return utils.NewSystemError(err)
	}
	for _, path := range markers {
		r.Sink.Info(fmt.Sprintf("Setting marker '%s'", path))
	}
	return nil
}

func (d *GitDeployer) fetch(ctx context.Context, location, dest string) error {
	if err := d.fetcher.Fetch(ctx, location, dest); err != nil {
		if artifact.IsURL(location) {
			return utils.NewTransportError("download", err)
		}
		return utils.NewSystemError(err)
	}
	return nil
}

func (d *GitDeployer) commit(_ context.Context, r *gitRun) error {
	r.Sink.Info("Committing repo")
	hash, err := r.repo.Commit(r.CommitMessage, d.author)
	if err != nil {
		return utils.NewSystemError(err)
	}
	d.logger.Debugw("created deployment commit", "app", r.App.Name(), "commit", hash.String())
	return nil
}

func (d *GitDeployer) push(ctx context.Context, r *gitRun) error {
	r.Sink.Info("Pushing to upstream")
	err := r.repo.Push(ctx)
	logger.Flush(r.Sink.Writer())
	if err != nil {
		return utils.NewTransportError("git push", err)
	}
	if head, err := r.repo.Head(); err == nil {
		d.logger.Infow("pushed deployment commit", "app", r.App.Name(), "commit", head.String())
	}

	refs, err := r.repo.RemoteRefs(ctx)
	if err != nil {
		d.logger.Warnw("could not list remote refs after push", "app", r.App.Name(), "error", err)
		return nil
	}
	for _, ref := range refs {
		r.Sink.Info(fmt.Sprintf("%s %s", ref.Name(), ref.Hash()))
	}
	return nil
}
