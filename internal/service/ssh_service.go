package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"paas-deployer/internal/config"
	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/logger"
	sshclient "paas-deployer/internal/pkg/ssh"
)

// SSHService checks that the deployer's identity can reach an
// application's SSH endpoint before a binary deployment is attempted.
type SSHService struct {
	cfg      config.SSHConfig
	provider model.ApplicationProvider
	logger   *logger.Logger
}

func NewSSHService(cfg config.SSHConfig, provider model.ApplicationProvider, log *logger.Logger) *SSHService {
	return &SSHService{
		cfg:      cfg,
		provider: provider,
		logger:   log,
	}
}

func (s *SSHService) TestConnection(ctx context.Context, req *model.SSHCheckRequest) *model.SSHCheckResponse {
	resp := &model.SSHCheckResponse{AppName: req.AppName}

	app, err := s.provider.GetOrCreate(ctx, model.ApplicationSpec{Name: req.AppName, Domain: req.Domain})
	if err != nil {
		resp.Details = []string{fmt.Sprintf("✗ %s", err)}
		return resp
	}

	ep, err := sshclient.ParseEndpoint(app.SSHURL())
	if err != nil {
		resp.Details = []string{fmt.Sprintf("✗ %s", err)}
		return resp
	}
	resp.Endpoint = ep.String()
	s.logger.SSHConnectionAttempt("check", ep.String())

	client := sshclient.NewClient(sshclient.SSHConfig{
		Endpoint:       ep,
		PrivateKeyPath: s.cfg.PrivateKeyPath(),
		HostKeyPolicy:  s.cfg.HostKeyPolicy,
		KnownHostsPath: s.cfg.KnownHostsPath,
		ConnectTimeout: s.cfg.ConnectTimeout.Duration,
	})
	if err := client.Connect(ctx); err != nil {
		s.logger.Errorf("SSH connection failed for %s: %v", ep, err)
		resp.Details = []string{"✗ SSH connection failed", fmt.Sprintf("error: %s", err)}
		return resp
	}
	defer client.Close()

	resp.Success = true
	resp.Details = []string{"✓ SSH connection established"}

	var out bytes.Buffer
	if err := client.Exec(ctx, "whoami", nil, &out, &out, s.cfg.ConnectTimeout.Duration); err == nil {
		resp.Details = append(resp.Details, fmt.Sprintf("✓ remote user: %s", strings.TrimSpace(out.String())))
	}

	s.logger.Infof("SSH connection successful for %s", ep)
	return resp
}

func (s *SSHService) BatchTestConnection(ctx context.Context, req *model.BatchSSHCheckRequest) []*model.SSHCheckResponse {
	s.logger.SSHConnectionAttempt("batch", fmt.Sprintf("%d applications", len(req.Applications)))

	results := make([]*model.SSHCheckResponse, len(req.Applications))
	var wg sync.WaitGroup

	for i, app := range req.Applications {
		wg.Add(1)
		go func(index int, r model.SSHCheckRequest) {
			defer wg.Done()
			results[index] = s.TestConnection(ctx, &r)
		}(i, app)
	}

	wg.Wait()
	return results
}
