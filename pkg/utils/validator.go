package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-shellwords"
)

func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535: %d", port)
	}
	return nil
}

// ParseEnvVars parses a space separated list of KEY=VALUE pairs. Values
// containing spaces must be quoted as a whole token, e.g.
// "_JAVA_OPTIONS=-Dfoo=1 -Dbar=2".
func ParseEnvVars(input string) (map[string]string, error) {
	vars := map[string]string{}
	if IsEmpty(input) {
		return vars, nil
	}

	tokens, err := shellwords.Parse(input)
	if err != nil {
		return nil, NewInvalidInputError("environment variables", err.Error())
	}

	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, NewInvalidInputError("environment variable", token)
		}
		vars[key] = value
	}
	return vars, nil
}

// PrivateKeyPath derives the private key location from a public key path
// by dropping a trailing ".pub".
func PrivateKeyPath(publicKeyPath string) string {
	return strings.TrimSuffix(publicKeyPath, ".pub")
}

func ValidatePrivateKey(path string) error {
	if IsEmpty(path) {
		return NewValidationError("SSH private key", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return NewNotFoundError("SSH private key", path)
	}

	if !strings.Contains(string(data), "BEGIN") || !strings.Contains(string(data), "END") {
		return NewInvalidInputError("SSH private key, must be PEM encoded", path)
	}
	return nil
}

func SplitCartridges(cartridges string) []string {
	return strings.Fields(cartridges)
}
