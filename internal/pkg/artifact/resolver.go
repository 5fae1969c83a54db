package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"paas-deployer/internal/model"
	"paas-deployer/internal/pkg/logger"
	"paas-deployer/pkg/utils"
)

// Reference is the ordered list of artifacts one deployment ships.
type Reference struct {
	Locations []string
	Mode      model.DeployMode
}

func (r Reference) Single() bool {
	return len(r.Locations) == 1
}

// Resolver turns the configured deployment path into artifact locations.
type Resolver struct {
	// BaseDir anchors relative paths, normally the CI workspace.
	BaseDir string
	// Vars are substituted into URLs before the process environment,
	// e.g. BUILD_NUMBER.
	Vars map[string]string
	Sink logger.Sink
}

func Extensions(mode model.DeployMode) []string {
	if mode == model.ModeBinary {
		return []string{".tar.gz"}
	}
	return []string{".war", ".ear"}
}

func MatchesMode(name string, mode model.DeployMode) bool {
	lower := strings.ToLower(name)
	for _, ext := range Extensions(mode) {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Resolve returns the artifacts for configured, which may be a URL, a file,
// a directory or a glob.
func (r *Resolver) Resolve(configured string, mode model.DeployMode) (Reference, error) {
	ref := Reference{Mode: mode}
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return ref, utils.NewValidationError("Deployment path", configured)
	}

	if IsURL(configured) {
		expanded := r.Expand(configured)
		r.sink().Info(fmt.Sprintf("Adding %s to deployment list", expanded))
		ref.Locations = []string{expanded}
		return ref, nil
	}

	target := configured
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.BaseDir, target)
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return ref, utils.NewSystemError(err)
	}

	var found []string
	if strings.ContainsAny(filepath.Base(target), "*?[") {
		found, err = r.glob(target, mode)
	} else {
		found, err = r.scan(target, mode)
	}
	if err != nil {
		return ref, err
	}

	if len(found) == 0 {
		return ref, utils.NewEmptyResultError(configured)
	}

	for _, f := range found {
		r.sink().Info(fmt.Sprintf("Adding %s to deployment list", f))
	}
	ref.Locations = found
	return ref, nil
}

func (r *Resolver) scan(target string, mode model.DeployMode) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utils.NewNotFoundError("Directory", target)
		}
		return nil, utils.NewSystemError(err)
	}

	if !info.IsDir() {
		if MatchesMode(info.Name(), mode) {
			return []string{target}, nil
		}
		return nil, nil
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, utils.NewSystemError(err)
	}
	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !MatchesMode(entry.Name(), mode) {
			continue
		}
		found = append(found, filepath.Join(target, entry.Name()))
	}
	sort.Strings(found)
	return found, nil
}

func (r *Resolver) glob(pattern string, mode model.DeployMode) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, utils.NewInvalidInputError("deployment path pattern", pattern)
	}
	var found []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || !MatchesMode(m, mode) {
			continue
		}
		found = append(found, m)
	}
	sort.Strings(found)
	return found, nil
}

// Expand substitutes $VAR and ${VAR} tokens from Vars, then the environment.
func (r *Resolver) Expand(s string) string {
	return os.Expand(s, func(key string) string {
		if v, ok := r.Vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

func (r *Resolver) sink() logger.Sink {
	if r.Sink == nil {
		return logger.Nop
	}
	return r.Sink
}
