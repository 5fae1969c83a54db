package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"

	"paas-deployer/pkg/utils"
)

// ControlDir is the reserved directory of the application repository that
// holds hooks, markers and runtime config. Cleaning never touches it.
const ControlDir = ".openshift"

// Marker files switch runtime options of the application on.
const (
	MarkerJava7 = "java7"
	MarkerJPDA  = "enable_jpda"
)

const markersDir = "markers"

var recognizedEntries = []string{"action_hooks", "config", markersDir}

// Locate validates a control-directory input and returns the directory whose
// children are merged into ControlDir. The input is either that directory
// itself (any name ending in "openshift", or one holding action_hooks,
// config or markers) or a parent containing an "openshift" or ".openshift"
// child. An empty input returns "" and no error.
func Locate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		return "", utils.NewInvalidInputError("control directory, must be an absolute path", path)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", utils.NewInvalidInputError("control directory, not a directory", path)
	}

	source := path
	if !strings.HasSuffix(filepath.Base(path), "openshift") && !hasRecognizedEntry(path) {
		for _, name := range []string{ControlDir, "openshift"} {
			candidate := filepath.Join(path, name)
			if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
				source = candidate
				break
			}
		}
	}

	if !hasRecognizedEntry(source) {
		return "", utils.NewInvalidInputError(
			fmt.Sprintf("control directory, expected one of %s", strings.Join(recognizedEntries, ", ")), path)
	}
	return source, nil
}

// Merge copies every child of source into workdir/ControlDir, overwriting
// files that already exist there. It returns the merged entry names.
func Merge(source, workdir string) ([]string, error) {
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, fmt.Errorf("read control directory: %w", err)
	}

	dest := filepath.Join(workdir, ControlDir)
	var merged []string
	for _, entry := range entries {
		if err := copy.Copy(filepath.Join(source, entry.Name()), filepath.Join(dest, entry.Name())); err != nil {
			return merged, fmt.Errorf("copy %s into %s: %w", entry.Name(), ControlDir, err)
		}
		merged = append(merged, entry.Name())
	}
	return merged, nil
}

// SetMarkers creates an empty marker file for each name under
// workdir/ControlDir/markers, keeping markers that already exist. It returns
// the repository relative path of every marker.
func SetMarkers(workdir string, names ...string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	dir := filepath.Join(workdir, ControlDir, markersDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create markers directory: %w", err)
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return paths, fmt.Errorf("set marker %s: %w", name, err)
		}
		f.Close()
		paths = append(paths, filepath.ToSlash(filepath.Join(ControlDir, markersDir, name)))
	}
	return paths, nil
}

func hasRecognizedEntry(dir string) bool {
	for _, name := range recognizedEntries {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
