package config

import (
	"fmt"
	"os"
	"strings"
)

// getSecret reads a secret from KEY_FILE (Docker secrets) or KEY.
// A KEY_FILE that cannot be read is an error rather than a silent empty value.
func getSecret(envKey string) (string, error) {
	if filePath := os.Getenv(envKey + "_FILE"); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read secret file for %s: %w", envKey, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return os.Getenv(envKey), nil
}
