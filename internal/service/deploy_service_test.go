package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"paas-deployer/internal/config"
	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/git/gittest"
	"paas-deployer/internal/pkg/logger"
	"paas-deployer/internal/pkg/metrics"
	"paas-deployer/internal/pkg/ssh/sshtest"
	"paas-deployer/pkg/utils"
)

var appTemplate = map[string]string{
	"pom.xml":                   "<project/>",
	"src/main/webapp/index.jsp": "hello",
	".openshift/markers/java7":  "",
}

func newTestService(t *testing.T, keyPath string, apps ...config.ApplicationConfig) *DeployService {
	t.Helper()
	cfg := config.Default()
	cfg.Deploy.Workdir = filepath.Join(t.TempDir(), "work")
	cfg.Deploy.LockTimeout = config.Duration{Duration: 100 * time.Millisecond}
	cfg.SSH.PublicKeyPath = keyPath + ".pub"
	cfg.SSH.CommandTimeout = config.Duration{Duration: 5 * time.Second}
	cfg.Applications = apps

	svc, err := NewDeployService(cfg, NewStaticProvider(apps), metrics.New(prometheus.NewRegistry()), logger.New(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func writeArtifact(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func hasStep(steps []string, substr string) bool {
	for _, s := range steps {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

func TestDeploySingleArchiveToDeployments(t *testing.T) {
	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{
		Name: "shop", Domain: "demo", GitURL: remote, AppURL: "http://shop-demo.example.com",
	})

	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "target", "shop-1.0.war"), "war-bytes")

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbosseap-6",
		DeploymentPath: "target",
		BuildID:        "42",
		Workspace:      ws,
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !result.Success || result.ApplicationURL != "http://shop-demo.example.com" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !hasStep(result.Steps, "Application deployed to http://shop-demo.example.com") {
		t.Fatalf("missing final log line in %v", result.Steps)
	}

	snap := gittest.Head(t, remote)
	want := map[string]string{
		"deployments/ROOT.war":     "war-bytes",
		".openshift/markers/java7": "",
	}
	if len(snap.Files) != len(want) {
		t.Fatalf("expected only %v in remote, got %v", want, snap.Files)
	}
	for name, content := range want {
		if snap.Files[name] != content {
			t.Fatalf("remote %s = %q, want %q", name, snap.Files[name], content)
		}
	}
	if !strings.HasPrefix(snap.Message, "deployment added for build 42") {
		t.Fatalf("unexpected commit message %q", snap.Message)
	}
}

func TestDeployMultipleArchivesKeepNames(t *testing.T) {
	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})

	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "target", "api.war"), "api")
	writeArtifact(t, filepath.Join(ws, "target", "web.war"), "web")

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbossews-2.0",
		DeploymentPath: filepath.Join(ws, "target"),
		CommitMessage:  "ci {build}",
		BuildID:        "7",
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	snap := gittest.Head(t, remote)
	if snap.Files["webapps/api.war"] != "api" || snap.Files["webapps/web.war"] != "web" {
		t.Fatalf("unexpected remote tree %v", snap.Files)
	}
	if _, ok := snap.Files["webapps/ROOT.war"]; ok {
		t.Fatalf("multiple artifacts must not be renamed")
	}
	if !strings.HasPrefix(snap.Message, "ci 7") {
		t.Fatalf("unexpected commit message %q", snap.Message)
	}
	if !hasStep(result.Steps, "Deleting 'pom.xml'") {
		t.Fatalf("expected clean step to be logged, got %v", result.Steps)
	}
}

func TestDeployMergesControlDirectory(t *testing.T) {
	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})

	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.war"), "war")
	writeArtifact(t, filepath.Join(ws, "ops", ".openshift", "action_hooks", "deploy"), "#!/bin/sh")
	writeArtifact(t, filepath.Join(ws, "ops", ".openshift", "config", "standalone.xml"), "<server/>")

	_, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbossas-7",
		DeploymentPath: "app.war",
		ControlDir:     "ops",
		Workspace:      ws,
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	snap := gittest.Head(t, remote)
	for _, name := range []string{
		".openshift/action_hooks/deploy",
		".openshift/config/standalone.xml",
		".openshift/markers/java7",
		"deployments/ROOT.war",
	} {
		if _, ok := snap.Files[name]; !ok {
			t.Fatalf("expected %s in remote, got %v", name, snap.Files)
		}
	}
}

func TestDeployFailuresLeaveRemoteUntouched(t *testing.T) {
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "target", "app.war"), "war")
	writeArtifact(t, filepath.Join(ws, "empty", "README"), "")

	tests := []struct {
		name string
		req  model.DeployRequest
		kind error
	}{
		{"missing app name", model.DeployRequest{Cartridges: "jbosseap-6", DeploymentPath: "target"}, utils.ErrValidation},
		{"missing cartridges", model.DeployRequest{AppName: "shop", DeploymentPath: "target"}, utils.ErrValidation},
		{"missing path", model.DeployRequest{AppName: "shop", Cartridges: "jbosseap-6"}, utils.ErrValidation},
		{"bad env", model.DeployRequest{AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "target", EnvironmentVariables: "A=1 JUSTKEY"}, utils.ErrInvalidInput},
		{"bad mode", model.DeployRequest{AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "target", Mode: "docker"}, utils.ErrInvalidInput},
		{"missing directory", model.DeployRequest{AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "nope"}, utils.ErrNotFound},
		{"no archives", model.DeployRequest{AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "empty"}, utils.ErrEmptyResult},
		{"bad control dir", model.DeployRequest{AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "target", ControlDir: "target"}, utils.ErrInvalidInput},
		{"unknown app", model.DeployRequest{AppName: "blog", Cartridges: "jbosseap-6", DeploymentPath: "target"}, utils.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := gittest.NewRemote(t, appTemplate)
			svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})

			req := tt.req
			req.Workspace = ws
			result, err := svc.Deploy(context.Background(), &req, nil)
			if !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			if result.Success || result.Error == "" {
				t.Fatalf("expected failed result, got %+v", result)
			}
			if snap := gittest.Head(t, remote); snap.Commits != 1 {
				t.Fatalf("remote must not change, got %d commits", snap.Commits)
			}
		})
	}
}

func TestDeployCloneFailureIsTransportError(t *testing.T) {
	svc := newTestService(t, "", config.ApplicationConfig{
		Name: "shop", GitURL: filepath.Join(t.TempDir(), "missing.git"),
	})
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.war"), "war")

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "app.war", Workspace: ws,
	}, nil)
	if !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if hasStep(result.Steps, "Committing repo") {
		t.Fatalf("no step may run after a failed clone: %v", result.Steps)
	}
}

// hookSink runs hook once, right before the line on is logged.
type hookSink struct {
	logger.Sink
	on   string
	hook func()
}

func (s *hookSink) Info(msg string) {
	if msg == s.on && s.hook != nil {
		s.hook()
		s.hook = nil
	}
	s.Sink.Info(msg)
}

func TestDeployPushFailureIsTotalFailure(t *testing.T) {
	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.war"), "war")

	sink := &hookSink{Sink: logger.Nop, on: "Pushing to upstream", hook: func() {
		gittest.Advance(t, remote, "README", "pushed meanwhile", "concurrent change")
	}}
	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "app.war", Workspace: ws,
	}, sink)
	if !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if result.Success || result.ApplicationURL != "" {
		t.Fatalf("expected failed result, got %+v", result)
	}
	if !hasStep(result.Steps, "Committing repo") || hasStep(result.Steps, "Application deployed") {
		t.Fatalf("unexpected steps %v", result.Steps)
	}

	snap := gittest.Head(t, remote)
	if !strings.HasPrefix(snap.Message, "concurrent change") || snap.Commits != 2 {
		t.Fatalf("remote head moved past the concurrent commit: %q, %d commits", snap.Message, snap.Commits)
	}
	if _, ok := snap.Files["deployments/ROOT.war"]; ok {
		t.Fatalf("deployment must not reach the remote")
	}
}

func TestDeploySingleURLArtifact(t *testing.T) {
	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gear/app" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ear-bytes"))
	}))
	defer web.Close()

	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbosseap-6",
		DeploymentPath: web.URL + "/gear/app",
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !hasStep(result.Steps, "Downloading the deployment package to 'ROOT.ear'") {
		t.Fatalf("expected download step, got %v", result.Steps)
	}
	if snap := gittest.Head(t, remote); snap.Files["deployments/ROOT.ear"] != "ear-bytes" {
		t.Fatalf("unexpected remote tree %v", snap.Files)
	}
}

func TestDeploySetsRuntimeMarkers(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"pom.xml": "<project/>"})
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.war"), "war")

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbossews-2.0",
		DeploymentPath: "app.war",
		Workspace:      ws,
		EnableJava7:    true,
		EnableJPDA:     true,
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !hasStep(result.Steps, "Setting marker '.openshift/markers/enable_jpda'") {
		t.Fatalf("expected marker step, got %v", result.Steps)
	}

	snap := gittest.Head(t, remote)
	for _, name := range []string{".openshift/markers/java7", ".openshift/markers/enable_jpda", "webapps/ROOT.war"} {
		if _, ok := snap.Files[name]; !ok {
			t.Fatalf("expected %s in remote, got %v", name, snap.Files)
		}
	}
}

func TestDeployRejectsConcurrentDeployOfSameApp(t *testing.T) {
	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.war"), "war")

	if err := svc.locks.TryLock(context.Background(), "shop", 0); err != nil {
		t.Fatal(err)
	}
	defer svc.locks.Unlock("shop")

	_, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "app.war", Workspace: ws,
	}, nil)
	if !errors.Is(err, utils.ErrValidation) || !strings.Contains(err.Error(), "already in progress") {
		t.Fatalf("expected busy error, got %v", err)
	}
}

func TestDeployBinaryOverSSH(t *testing.T) {
	srv := sshtest.NewServer(t)
	srv.Output = "Activation complete\n"

	svc := newTestService(t, srv.KeyPath, config.ApplicationConfig{
		Name:   "shop",
		GitURL: filepath.Join(t.TempDir(), "never-cloned.git"),
		SSHURL: srv.URL("5266c0de"),
		AppURL: "http://shop.example.com",
	})

	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "deployment", "app.tar.gz"), "tarball-bytes")
	writeArtifact(t, filepath.Join(ws, "deployment", "app.war"), "ignored")

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbosseap-6",
		DeploymentPath: "deployment",
		Mode:           "binary",
		Workspace:      ws,
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	execs := srv.Execs()
	if len(execs) != 1 {
		t.Fatalf("expected one exec, got %d", len(execs))
	}
	if execs[0].Command != BinaryDeployCommand || execs[0].User != "5266c0de" {
		t.Fatalf("unexpected exec %+v", execs[0])
	}
	if string(execs[0].Stdin) != "tarball-bytes" {
		t.Fatalf("unexpected stdin %q", execs[0].Stdin)
	}
	if hasStep(result.Steps, "Cloning") {
		t.Fatalf("binary deploy must not touch git: %v", result.Steps)
	}
	if result.ApplicationURL != "http://shop.example.com" {
		t.Fatalf("unexpected url %q", result.ApplicationURL)
	}
}

func TestDeployBinaryDownloadsURL(t *testing.T) {
	srv := sshtest.NewServer(t)
	web := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-tarball"))
	}))
	defer web.Close()

	svc := newTestService(t, srv.KeyPath, config.ApplicationConfig{Name: "shop", SSHURL: srv.URL("app")})

	_, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName:        "shop",
		Cartridges:     "jbosseap-6",
		DeploymentPath: web.URL + "/builds/$BUILD_NUMBER/app.tar.gz",
		BuildID:        "9",
		Mode:           "BINARY",
	}, nil)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}

	if execs := srv.Execs(); len(execs) != 1 || string(execs[0].Stdin) != "remote-tarball" {
		t.Fatalf("unexpected execs %+v", execs)
	}
	downloaded := filepath.Join(svc.workspaces.Root(), "shop", workdirName, "app.tar.gz")
	if _, err := os.Stat(downloaded); err != nil {
		t.Fatalf("expected downloaded archive: %v", err)
	}
}

func TestDeployBinaryRemoteFailure(t *testing.T) {
	srv := sshtest.NewServer(t)
	srv.ExitStatus = 1

	svc := newTestService(t, srv.KeyPath, config.ApplicationConfig{Name: "shop", SSHURL: srv.URL("app")})
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.tar.gz"), "x")

	result, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "app.tar.gz", Mode: "binary", Workspace: ws,
	}, nil)
	if !errors.Is(err, utils.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "exited with status 1") {
		t.Fatalf("unexpected result %+v", result)
	}
}

type progressRecorder struct {
	*logger.Recorder
	stages []string
}

func (p *progressRecorder) Progress(stage string, percent int) {
	p.stages = append(p.stages, stage)
}

func TestDeployReportsProgress(t *testing.T) {
	remote := gittest.NewRemote(t, appTemplate)
	svc := newTestService(t, "", config.ApplicationConfig{Name: "shop", GitURL: remote})
	ws := t.TempDir()
	writeArtifact(t, filepath.Join(ws, "app.war"), "war")

	sink := &progressRecorder{Recorder: logger.NewRecorder(nil)}
	if _, err := svc.Deploy(context.Background(), &model.DeployRequest{
		AppName: "shop", Cartridges: "jbosseap-6", DeploymentPath: "app.war", Workspace: ws,
	}, sink); err != nil {
		t.Fatal(err)
	}

	want := "validate resolve application workspace clone clean populate commit push done"
	if got := strings.Join(sink.stages, " "); got != want {
		t.Fatalf("unexpected stages %q", got)
	}
}
