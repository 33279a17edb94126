package forum

import (
	"fmt"

	"forumsync/internal/config"
	"forumsync/internal/importer"
)

// NewForumFromConfig creates a Forum implementation based on the forum config type.
// The token is resolved by the caller since it may come from the environment
// or the encrypted token file.
func NewForumFromConfig(cfg config.ForumConfig, token string) (importer.Forum, error) {
	switch cfg.Type {
	case "http":
		f, err := NewHTTPForum(HTTPOptions{
			BaseURL:      cfg.URL,
			Token:        token,
			UserID:       cfg.UserID,
			Timeout:      cfg.Timeout.Duration,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff.Duration,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	case "memory":
		return NewMemoryForum(), nil
	default:
		return nil, fmt.Errorf("unknown forum type: %q", cfg.Type)
	}
}
