package database

import (
	"fmt"
	"os"
	"path/filepath"

	"forumsync/internal/config"
)

// JournalFileName is the SQLite file created inside JournalConfig.DataDir.
const JournalFileName = "journal.db"

// NewJournalFromConfig creates a journal based on the journal config type.
func NewJournalFromConfig(cfg config.JournalConfig) (*SQLiteJournal, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite journal")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		return NewSQLiteJournal(filepath.Join(cfg.DataDir, JournalFileName))
	case "memory":
		return NewSQLiteJournal(":memory:")
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
}
