package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"paas-deployer/internal/config"
	"paas-deployer/internal/pkg/artifact"
	"paas-deployer/internal/pkg/logger"
	sshclient "paas-deployer/internal/pkg/ssh"
	"paas-deployer/pkg/utils"
)

// BinaryDeployCommand is run on the application gear with the archive on
// stdin.
const BinaryDeployCommand = "oo-binary-deploy"

// BinaryDeployer streams a prebuilt tarball to the application's SSH
// endpoint.
type BinaryDeployer struct {
	ssh     config.SSHConfig
	fetcher *artifact.Fetcher
	logger  *logger.Logger
}

func NewBinaryDeployer(cfg config.SSHConfig, fetcher *artifact.Fetcher, log *logger.Logger) *BinaryDeployer {
	return &BinaryDeployer{
		ssh:     cfg,
		fetcher: fetcher,
		logger:  log,
	}
}

func (d *BinaryDeployer) Deploy(ctx context.Context, job *Job) error {
	job.advance(StateInit)
	if err := d.deploy(ctx, job); err != nil {
		job.fail()
		d.logger.DeploymentError("binary-deploy", err)
		return err
	}
	job.advance(StateDone)
	return nil
}

func (d *BinaryDeployer) deploy(ctx context.Context, job *Job) error {
	location := job.Artifacts.Locations[0]
	if len(job.Artifacts.Locations) > 1 {
		job.Sink.Info(fmt.Sprintf("Several binaries found, deploying %s", location))
	}

	archive, err := d.localArchive(ctx, job, location)
	if err != nil {
		return utils.NewDeployError("download", err)
	}

	ep, err := sshclient.ParseEndpoint(job.App.SSHURL())
	if err != nil {
		return utils.NewDeployError("connect", err)
	}

	keyPath := d.ssh.PrivateKeyPath()
	job.Sink.Info("Using SSH private key " + keyPath)
	if err := utils.ValidatePrivateKey(keyPath); err != nil {
		return utils.NewDeployError("connect", err)
	}

	in, err := os.Open(archive)
	if err != nil {
		return utils.NewDeployError("upload", utils.NewSystemError(err))
	}
	defer in.Close()

	reportProgress(job.Sink, "connect", 50)
	d.logger.SSHConnectionAttempt("binary-deploy", ep.String())
	client := sshclient.NewClient(sshclient.SSHConfig{
		Endpoint:       ep,
		PrivateKeyPath: keyPath,
		HostKeyPolicy:  d.ssh.HostKeyPolicy,
		KnownHostsPath: d.ssh.KnownHostsPath,
		ConnectTimeout: d.ssh.ConnectTimeout.Duration,
	})
	if err := client.Connect(ctx); err != nil {
		return utils.NewDeployError("connect", utils.NewTransportError("SSH connect", err))
	}
	defer client.Close()
	job.advance(StateConnected)

	reportProgress(job.Sink, "upload", 70)
	job.Sink.Info(fmt.Sprintf("Deploying %s to %s", filepath.Base(archive), ep))
	start := time.Now()
	out := job.Sink.Writer()
	err = client.Exec(ctx, BinaryDeployCommand, in, out, out, d.ssh.CommandTimeout.Duration)
	logger.Flush(out)
	if status, ok := sshclient.ExitStatus(err); ok {
		err = fmt.Errorf("%s exited with status %d", BinaryDeployCommand, status)
	}
	if err != nil {
		return utils.NewDeployError("upload", utils.NewTransportError("binary deploy", err))
	}
	job.advance(StateUploaded)
	d.logger.Infow("binary deployed", "app", job.App.Name(), "duration", time.Since(start))
	return nil
}

// localArchive returns a file path for location, downloading URLs into the
// job's working directory first.
func (d *BinaryDeployer) localArchive(ctx context.Context, job *Job, location string) (string, error) {
	if !artifact.IsURL(location) {
		return location, nil
	}
	dest := filepath.Join(job.Workdir, artifact.BinaryArchiveName)
	job.Sink.Info(fmt.Sprintf("Downloading the deployment binary to '%s'", dest))
	if err := d.fetcher.Download(ctx, location, dest); err != nil {
		return "", utils.NewTransportError("download", err)
	}
	return dest, nil
}
