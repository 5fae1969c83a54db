package ssh

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"paas-deployer/internal/config"
	"paas-deployer/pkg/utils"
)

const defaultPort = 22

type Endpoint struct {
	User string
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s@%s", e.User, e.Addr())
}

// ParseEndpoint accepts ssh://user@host[:port][/path] or user@host[:port].
func ParseEndpoint(raw string) (Endpoint, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Endpoint{}, utils.NewValidationError("SSH URL", raw)
	}
	if !strings.Contains(s, "://") {
		s = "ssh://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Scheme != "ssh" {
		return Endpoint{}, utils.NewInvalidInputError("SSH URL", raw)
	}

	ep := Endpoint{Host: u.Hostname(), Port: defaultPort}
	if u.User != nil {
		ep.User = u.User.Username()
	}
	if ep.User == "" || ep.Host == "" {
		return Endpoint{}, utils.NewInvalidInputError("SSH URL, user and host are required", raw)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, utils.NewInvalidInputError("SSH URL port", raw)
		}
		if err := utils.ValidatePort(port); err != nil {
			return Endpoint{}, utils.NewInvalidInputError("SSH URL port", raw)
		}
		ep.Port = port
	}
	return ep, nil
}

// HostKeyCallback maps the configured trust policy to a callback.
func HostKeyCallback(policy, knownHostsPath string) (ssh.HostKeyCallback, error) {
	switch policy {
	case "", config.HostKeyInsecureSkipVerify:
		return ssh.InsecureIgnoreHostKey(), nil
	case config.HostKeyKnownHosts:
		cb, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts %s: %w", knownHostsPath, err)
		}
		return cb, nil
	}
	return nil, utils.NewInvalidInputError("host key policy", policy)
}
