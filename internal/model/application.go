package model

import (
	"context"
	"fmt"
	"strings"
)

// TargetApplication is the remote application slot a deployment lands in.
// The deployer only reads its endpoints.
type TargetApplication interface {
	Name() string
	GitURL() string
	SSHURL() string
	ApplicationURL() string
}

// ApplicationProvider looks up (or creates) the target application.
// Implementations must make repeated calls idempotent.
type ApplicationProvider interface {
	GetOrCreate(ctx context.Context, spec ApplicationSpec) (TargetApplication, error)
}

type ApplicationSpec struct {
	Name        string
	Domain      string
	Cartridges  []string
	GearProfile string
	Env         map[string]string
	AutoScale   bool
}

// Application is a plain TargetApplication value.
type Application struct {
	AppName string `json:"name"`
	Git     string `json:"gitUrl"`
	SSH     string `json:"sshUrl"`
	URL     string `json:"appUrl"`
}

func (a Application) Name() string           { return a.AppName }
func (a Application) GitURL() string         { return a.Git }
func (a Application) SSHURL() string         { return a.SSH }
func (a Application) ApplicationURL() string { return a.URL }

type DeployMode string

const (
	ModeArchive DeployMode = "ARCHIVE"
	ModeBinary  DeployMode = "BINARY"
)

// ParseDeployMode accepts archive, git (older name for archive) and binary
// in any case. Empty input means archive.
func ParseDeployMode(s string) (DeployMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ARCHIVE", "GIT":
		return ModeArchive, nil
	case "BINARY":
		return ModeBinary, nil
	}
	return "", fmt.Errorf("unknown deployment mode %q (must be ARCHIVE or BINARY)", s)
}

func (m DeployMode) String() string {
	return string(m)
}
