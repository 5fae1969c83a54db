package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	HostKeyInsecureSkipVerify = "insecure-skip-verify"
	HostKeyKnownHosts         = "known-hosts"
)

type Config struct {
	Server       ServerConfig        `toml:"server"`
	SSH          SSHConfig           `toml:"ssh"`
	Git          GitConfig           `toml:"git"`
	Deploy       DeployConfig        `toml:"deploy"`
	Logging      LoggingConfig       `toml:"logging"`
	Applications []ApplicationConfig `toml:"applications"`
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
	// WorkspaceRoot bounds the workspace, deployment path and control
	// directory the HTTP agent accepts. Empty means the deploy workdir.
	WorkspaceRoot string `toml:"workspace_root"`
}

// AgentWorkspaceRoot is the directory every path sent to the HTTP agent must
// stay inside.
func (c *Config) AgentWorkspaceRoot() string {
	if c.Server.WorkspaceRoot != "" {
		return c.Server.WorkspaceRoot
	}
	return c.Deploy.Workdir
}

type SSHConfig struct {
	PublicKeyPath  string   `toml:"public_key_path"`
	HostKeyPolicy  string   `toml:"host_key_policy"`
	KnownHostsPath string   `toml:"known_hosts_path"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	CommandTimeout Duration `toml:"command_timeout"`
}

type GitConfig struct {
	AuthorName     string `toml:"author_name"`
	AuthorEmail    string `toml:"author_email"`
	CommitTemplate string `toml:"commit_template"`
}

type DeployConfig struct {
	Workdir         string   `toml:"workdir"`
	LockTimeout     Duration `toml:"lock_timeout"`
	DownloadTimeout Duration `toml:"download_timeout"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ApplicationConfig describes an existing application slot on the PaaS.
type ApplicationConfig struct {
	Name    string `toml:"name"`
	Domain  string `toml:"domain"`
	GitURL  string `toml:"git_url"`
	SSHURL  string `toml:"ssh_url"`
	AppURL  string `toml:"app_url"`
	Runtime string `toml:"runtime"`
}

// Duration decodes TOML strings such as "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// PrivateKeyPath is the identity presented to git and SSH endpoints.
func (c SSHConfig) PrivateKeyPath() string {
	return strings.TrimSuffix(c.PublicKeyPath, ".pub")
}

func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		SSH: SSHConfig{
			PublicKeyPath:  filepath.Join(home, ".ssh", "id_rsa.pub"),
			HostKeyPolicy:  HostKeyInsecureSkipVerify,
			KnownHostsPath: filepath.Join(home, ".ssh", "known_hosts"),
			ConnectTimeout: Duration{10 * time.Second},
			CommandTimeout: Duration{10 * time.Minute},
		},
		Git: GitConfig{
			AuthorName:     "paas-deployer",
			AuthorEmail:    "paas-deployer@localhost",
			CommitTemplate: "deployment added for build {build}",
		},
		Deploy: DeployConfig{
			Workdir:         filepath.Join(os.TempDir(), "paas-deployer"),
			LockTimeout:     Duration{30 * time.Second},
			DownloadTimeout: Duration{10 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig layers defaults, the TOML file at path (when it exists), a .env
// file and finally environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config %s: %w", path, err)
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = getEnvAsString("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.WorkspaceRoot = getEnvAsString("SERVER_WORKSPACE_ROOT", cfg.Server.WorkspaceRoot)
	if origins := getEnvAsString("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	cfg.SSH.PublicKeyPath = getEnvAsString("SSH_PUBLIC_KEY_PATH", cfg.SSH.PublicKeyPath)
	cfg.SSH.HostKeyPolicy = getEnvAsString("SSH_HOST_KEY_POLICY", cfg.SSH.HostKeyPolicy)
	cfg.SSH.KnownHostsPath = getEnvAsString("SSH_KNOWN_HOSTS_PATH", cfg.SSH.KnownHostsPath)
	cfg.SSH.ConnectTimeout.Duration = getEnvAsDuration("SSH_CONNECT_TIMEOUT", cfg.SSH.ConnectTimeout.Duration)
	cfg.SSH.CommandTimeout.Duration = getEnvAsDuration("SSH_COMMAND_TIMEOUT", cfg.SSH.CommandTimeout.Duration)

	cfg.Git.AuthorName = getEnvAsString("GIT_AUTHOR_NAME", cfg.Git.AuthorName)
	cfg.Git.AuthorEmail = getEnvAsString("GIT_AUTHOR_EMAIL", cfg.Git.AuthorEmail)
	cfg.Git.CommitTemplate = getEnvAsString("COMMIT_TEMPLATE", cfg.Git.CommitTemplate)

	cfg.Deploy.Workdir = getEnvAsString("DEPLOY_WORKDIR", cfg.Deploy.Workdir)
	cfg.Deploy.LockTimeout.Duration = getEnvAsDuration("DEPLOY_LOCK_TIMEOUT", cfg.Deploy.LockTimeout.Duration)
	cfg.Deploy.DownloadTimeout.Duration = getEnvAsDuration("DOWNLOAD_TIMEOUT", cfg.Deploy.DownloadTimeout.Duration)

	cfg.Logging.Level = getEnvAsString("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvAsString("LOG_FORMAT", cfg.Logging.Format)
}

func (c *Config) Validate() error {
	switch c.SSH.HostKeyPolicy {
	case HostKeyInsecureSkipVerify, HostKeyKnownHosts:
	default:
		return fmt.Errorf("invalid ssh.host_key_policy %q (must be %s or %s)",
			c.SSH.HostKeyPolicy, HostKeyInsecureSkipVerify, HostKeyKnownHosts)
	}
	if c.Deploy.Workdir == "" {
		return fmt.Errorf("deploy.workdir cannot be empty")
	}
	seen := map[string]bool{}
	for _, app := range c.Applications {
		if app.Name == "" {
			return fmt.Errorf("applications: name is required")
		}
		key := app.Domain + "/" + app.Name
		if seen[key] {
			return fmt.Errorf("applications: duplicate entry %s", key)
		}
		seen[key] = true
	}
	return nil
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvAsInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
