package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	// EnvPrefix prefixes every environment variable that overrides a config key.
	EnvPrefix = "ISPOC"

	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvAdminToken    = "ISPOC_ADMIN_TOKEN"
	EnvAdminPassword = "ADMIN_PASSWORD"
)

// Secrets are credentials read from the environment. They are never written
// to config.toml.
type Secrets struct {
	OpenAIAPIKey string
	AdminToken   string
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. With no arguments ".env" in the working directory is
// tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// LoadSecrets reads secrets from the environment. The admin token falls back
// to ADMIN_PASSWORD.
func LoadSecrets() Secrets {
	token := os.Getenv(EnvAdminToken)
	if token == "" {
		token = os.Getenv(EnvAdminPassword)
	}

	return Secrets{
		OpenAIAPIKey: os.Getenv(EnvOpenAIAPIKey),
		AdminToken:   token,
	}
}
