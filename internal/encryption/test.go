package encryption

import (
	"fmt"
	"strings"
)

// TestTokenStore keeps the token in memory behind a fixed passphrase.
// It requires no key files and no crypto.
type TestTokenStore struct {
	passphrase string
	token      string
	configured bool
}

var _ TokenStore = (*TestTokenStore)(nil)

// NewTestTokenStore creates a new TestTokenStore.
func NewTestTokenStore() *TestTokenStore {
	return &TestTokenStore{}
}

func (s *TestTokenStore) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	s.passphrase = passphrase
	s.configured = true
	return nil
}

func (s *TestTokenStore) IsConfigured() bool {
	return s.configured
}

func (s *TestTokenStore) StoreToken(token string) error {
	if !s.configured {
		return fmt.Errorf("loading public key: not set up")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	s.token = token
	return nil
}

func (s *TestTokenStore) HasToken() bool {
	return s.token != ""
}

func (s *TestTokenStore) LoadToken(passphrase string) (string, error) {
	if s.token == "" {
		return "", ErrNoToken
	}
	if passphrase != s.passphrase {
		return "", fmt.Errorf("decrypting private key: incorrect passphrase")
	}
	return s.token, nil
}
