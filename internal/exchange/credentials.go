package exchange

import (
	"context"
	"errors"
	"sync"

	"github.com/kalanyuz/gcp-cryptobot/internal/core"
	"github.com/kalanyuz/gcp-cryptobot/internal/secrets"
)

type Credentials struct {
	Key    string
	Secret string
}

// CredentialSource lazily resolves the API key pair from the secret store on
// the first authenticated call and keeps it for the process lifetime. The
// mutex makes concurrent first calls single-flight; a failed fetch is not
// cached, so a later call may still succeed.
type CredentialSource struct {
	store      secrets.Store
	keyName    string
	secretName string

	mu     sync.Mutex
	loaded bool
	creds  Credentials
}

func NewCredentialSource(store secrets.Store, keyName, secretName string) *CredentialSource {
	return &CredentialSource{
		store:      store,
		keyName:    keyName,
		secretName: secretName,
	}
}

func (s *CredentialSource) Get(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.creds, nil
	}
	key, err := s.store.GetSecret(ctx, s.keyName)
	if err != nil {
		return Credentials{}, errors.Join(core.ErrCredentialsUnavailable, err)
	}
	secret, err := s.store.GetSecret(ctx, s.secretName)
	if err != nil {
		return Credentials{}, errors.Join(core.ErrCredentialsUnavailable, err)
	}
	s.creds = Credentials{Key: key, Secret: secret}
	s.loaded = true
	return s.creds, nil
}
