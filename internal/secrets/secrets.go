package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Store supplies API key material by name. Implementations may be backed by a
// managed secret service or by the process environment; callers fetch a
// secret at most once per process and never log its value.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvStore resolves secrets from environment variables. Combined with a
// dotenv load at process entry this covers local and container deployments.
type EnvStore struct{}

func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func (s *EnvStore) GetSecret(_ context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("secret name is required")
	}
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("secret %q is not set", name)
	}
	return value, nil
}
