package encryption

import (
	"fmt"

	"forumsync/internal/config"
)

// NewTokenStoreFromConfig creates a TokenStore based on the configuration type.
func NewTokenStoreFromConfig(cfg config.EncryptionConfig) (TokenStore, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeTokenStore(cfg), nil
	case "test":
		return NewTestTokenStore(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
