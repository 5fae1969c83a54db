package artifact

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	RootName = "ROOT"

	// BinaryArchiveName is what a downloaded binary deployment is saved as.
	BinaryArchiveName = "app.tar.gz"
)

var deploySubdirs = map[string]string{
	"jbossews": "webapps",
}

const defaultDeploySubdir = "deployments"

// DeploySubdir maps the application's cartridges to the directory the
// runtime scans for archives: webapps for Tomcat (jbossews), deployments for
// JBoss/WildFly and everything else.
func DeploySubdir(cartridges []string) string {
	for _, c := range cartridges {
		for prefix, dir := range deploySubdirs {
			if strings.HasPrefix(strings.ToLower(c), prefix) {
				return dir
			}
		}
	}
	return defaultDeploySubdir
}

// RootDeploymentName returns the file name a lone artifact is published
// under. Paths keep their own extension. URLs are classified by substring:
// ".ear", then ".war", then a bare "ear" anywhere in the URL, else war. The
// bare "ear" match also fires on URLs such as /bear/app; callers rely on
// this behavior so it is kept as is.
func RootDeploymentName(location string) string {
	loc := strings.ToLower(location)
	if IsURL(loc) {
		switch {
		case strings.Contains(loc, ".ear"):
			return RootName + ".ear"
		case strings.Contains(loc, ".war"):
			return RootName + ".war"
		case strings.Contains(loc, "ear"):
			return RootName + ".ear"
		default:
			return RootName + ".war"
		}
	}

	ext := filepath.Ext(loc)
	if ext == "" {
		return RootName
	}
	return RootName + ext
}

// BaseName is the file name an artifact keeps when it is not renamed.
func BaseName(location string) string {
	if IsURL(location) {
		if u, err := url.Parse(location); err == nil && u.Path != "" && u.Path != "/" {
			return path.Base(u.Path)
		}
		return RootDeploymentName(location)
	}
	return filepath.Base(location)
}

func IsURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
