package handler

import (
	"path/filepath"
	"strings"

	"paas-deployer/internal/pkg/artifact"
	"paas-deployer/pkg/utils"
)

// confine anchors workspace at root and checks that workspace and every
// local path, taken relative to it, stay inside root. It returns the
// absolute workspace. URLs and empty paths are not checked.
func confine(root, workspace string, paths ...string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", utils.NewSystemError(err)
	}

	if workspace == "" {
		workspace = root
	} else if !filepath.IsAbs(workspace) {
		workspace = filepath.Join(root, workspace)
	}
	workspace = filepath.Clean(workspace)
	if !within(root, workspace) {
		return "", utils.NewInvalidInputError("workspace, must be inside "+root, workspace)
	}

	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || artifact.IsURL(p) {
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(workspace, p)
		}
		if !within(root, filepath.Clean(p)) {
			return "", utils.NewInvalidInputError("path, must be inside "+root, p)
		}
	}
	return workspace, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
