package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"forumsync/internal/config"
)

// ErrNoToken is returned when no encrypted token has been stored.
var ErrNoToken = errors.New("no encrypted api token stored")

// TokenStore keeps the forum API token encrypted at rest. Storing only needs
// the public key; reading it back needs the passphrase.
type TokenStore interface {
	// Setup creates a new key pair protected by passphrase.
	Setup(passphrase string) error

	// IsConfigured reports whether a key pair exists.
	IsConfigured() bool

	// StoreToken encrypts token to the public key and saves it.
	StoreToken(token string) error

	// HasToken reports whether an encrypted token has been saved.
	HasToken() bool

	// LoadToken unlocks the private key with passphrase and decrypts the token.
	LoadToken(passphrase string) (string, error)
}

// AgeTokenStore implements TokenStore using filippo.io/age with X25519 keys.
// The public key is stored in plaintext; the private key is encrypted with the
// user's passphrase using age's scrypt-based passphrase encryption.
type AgeTokenStore struct {
	publicKeyPath  string
	privateKeyPath string
	tokenPath      string
}

var _ TokenStore = (*AgeTokenStore)(nil)

// NewAgeTokenStore creates a new AgeTokenStore from configuration.
func NewAgeTokenStore(cfg config.EncryptionConfig) *AgeTokenStore {
	return &AgeTokenStore{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
		tokenPath:      cfg.TokenPath,
	}
}

// Setup generates a new X25519 key pair, stores the public key in plaintext,
// and encrypts the private key with the passphrase.
func (s *AgeTokenStore) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{s.publicKeyPath, s.privateKeyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(s.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if err := writeEncrypted(s.privateKeyPath, recipient, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// IsConfigured returns true if both key files exist.
func (s *AgeTokenStore) IsConfigured() bool {
	return fileExists(s.publicKeyPath) && fileExists(s.privateKeyPath)
}

// StoreToken encrypts the token to the stored public key.
func (s *AgeTokenStore) StoreToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	recipient, err := s.loadRecipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := writeEncrypted(s.tokenPath, recipient, token); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// HasToken returns true if the encrypted token file exists.
func (s *AgeTokenStore) HasToken() bool {
	return fileExists(s.tokenPath)
}

// LoadToken decrypts the private key with passphrase and uses it to read the token.
func (s *AgeTokenStore) LoadToken(passphrase string) (string, error) {
	if !s.HasToken() {
		return "", ErrNoToken
	}
	identity, err := s.unlock(passphrase)
	if err != nil {
		return "", err
	}
	data, err := readEncrypted(s.tokenPath, identity)
	if err != nil {
		return "", fmt.Errorf("decrypting token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// unlock decrypts the private key using the passphrase.
func (s *AgeTokenStore) unlock(passphrase string) (age.Identity, error) {
	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}
	keyData, err := readEncrypted(s.privateKeyPath, scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in private key")
	}
	return identities[0], nil
}

// loadRecipient reads the public key from disk and parses it.
func (s *AgeTokenStore) loadRecipient() (age.Recipient, error) {
	pubData, err := os.ReadFile(s.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}
	return recipients[0], nil
}

func writeEncrypted(path string, recipient age.Recipient, plaintext string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := age.Encrypt(f, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return f.Close()
}

func readEncrypted(path string, identity age.Identity) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := age.Decrypt(f, identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
