package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kalanyuz/gcp-cryptobot/internal/core"
)

type countingStore struct {
	fetches int64
	fail    atomic.Bool
}

func (s *countingStore) GetSecret(_ context.Context, name string) (string, error) {
	atomic.AddInt64(&s.fetches, 1)
	if s.fail.Load() {
		return "", fmt.Errorf("secret %q unreachable", name)
	}
	return "value-of-" + name, nil
}

func TestCredentialSourceFetchesOnce(t *testing.T) {
	store := &countingStore{}
	source := NewCredentialSource(store, "API_KEY", "API_SECRET")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			creds, err := source.Get(context.Background())
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}
			if creds.Key != "value-of-API_KEY" || creds.Secret != "value-of-API_SECRET" {
				t.Errorf("Get() = %+v, torn credentials", creds)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&store.fetches); got != 2 {
		t.Fatalf("secret fetches = %d, want exactly 2 (key + secret)", got)
	}
}

func TestCredentialSourceDoesNotCacheFailure(t *testing.T) {
	store := &countingStore{}
	store.fail.Store(true)
	source := NewCredentialSource(store, "API_KEY", "API_SECRET")

	if _, err := source.Get(context.Background()); !errors.Is(err, core.ErrCredentialsUnavailable) {
		t.Fatalf("Get() error = %v, want ErrCredentialsUnavailable", err)
	}

	store.fail.Store(false)
	creds, err := source.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() after store recovery error = %v", err)
	}
	if creds.Key == "" || creds.Secret == "" {
		t.Fatalf("Get() = %+v, want resolved credentials", creds)
	}
}
