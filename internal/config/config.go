package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for fsync.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Forum      ForumConfig      `toml:"forum"`
	Source     SourceConfig     `toml:"source"`
	Import     ImportConfig     `toml:"import"`
	Journal    JournalConfig    `toml:"journal"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// ForumConfig describes the forum to import into.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ForumConfig struct {
	Type string `toml:"type"` // "http" or "memory"

	// HTTP-specific fields (only used when Type == "http")
	URL          string   `toml:"url,omitempty"`
	Token        string   `toml:"token,omitempty"`   // prefer FSYNC_API_TOKEN or the encrypted token file
	UserID       int      `toml:"user_id,omitempty"` // importer identity, sent as _uid
	Timeout      Duration `toml:"timeout,omitempty"`
	MaxRetries   int      `toml:"max_retries,omitempty"`
	RetryBackoff Duration `toml:"retry_backoff,omitempty"`
}

// SourceConfig describes where files are read from.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SourceConfig struct {
	Type   string   `toml:"type"` // "filesystem", "tarball", "s3" or "memory"
	Ignore []string `toml:"ignore"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// Tarball-specific fields (only used when Type == "tarball")
	URL             string `toml:"url,omitempty"`
	Token           string `toml:"token,omitempty"` // sent as a bearer token to private code hosts
	StripComponents int    `toml:"strip_components,omitempty"` // 0 means 1; negative keeps the full path

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores

	// Static S3 credentials; the default AWS chain is used when unset.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// ImportConfig holds the reconciliation options.
type ImportConfig struct {
	RepoURL          string   `toml:"repo_url"`
	MasterCategory   string   `toml:"master_category"`
	GenerateTOC      bool     `toml:"generate_toc"`
	TOCTitle         string   `toml:"toc_title"`
	TOCHeader        string   `toml:"toc_header"`
	TOCCategory      string   `toml:"toc_category,omitempty"`
	ChunkMaxLength   int      `toml:"chunk_max_length"`
	ReplyDelay       Duration `toml:"reply_delay"`
	LegacyPathLookup bool     `toml:"legacy_path_lookup"`
}

// JournalConfig represents configuration for the import journal.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type JournalConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair and the encrypted API token.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	TokenPath      string `toml:"token_path"`
}

// Duration is a time.Duration written as a string such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a new Config with default values rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Forum: ForumConfig{
			Type:    "http",
			Timeout: Duration{30 * time.Second},
		},
		Source: SourceConfig{
			Type:   "filesystem",
			Root:   ".",
			Ignore: []string{".git", "node_modules"},
		},
		Import: ImportConfig{
			GenerateTOC:    true,
			TOCTitle:       "Table of Contents",
			TOCHeader:      "Files imported from the repository.",
			ChunkMaxLength: 32768,
			ReplyDelay:     Duration{time.Second},
		},
		Journal: JournalConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "fsync.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "fsync.key"),
			TokenPath:      filepath.Join(baseDir, "keys", "token.age"),
		},
	}
}

// minChunkMaxLength leaves room for the code fence and continuation marker.
const minChunkMaxLength = 256

// Validate reports configuration errors that must stop a run before any
// remote call is made.
func (c *Config) Validate() error {
	switch c.Forum.Type {
	case "http":
		if c.Forum.URL == "" {
			return fmt.Errorf("forum.url is required for http forum")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown forum type: %q", c.Forum.Type)
	}

	switch c.Source.Type {
	case "filesystem":
		if c.Source.Root == "" {
			return fmt.Errorf("source.root is required for filesystem source")
		}
	case "tarball":
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required for tarball source")
		}
	case "s3":
		if c.Source.S3Bucket == "" {
			return fmt.Errorf("source.s3_bucket is required for s3 source")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown source type: %q", c.Source.Type)
	}

	if c.Import.ChunkMaxLength != 0 && c.Import.ChunkMaxLength < minChunkMaxLength {
		return fmt.Errorf("import.chunk_max_length must be at least %d", minChunkMaxLength)
	}
	if c.Import.ReplyDelay.Duration < 0 {
		return fmt.Errorf("import.reply_delay must not be negative")
	}

	switch c.Journal.Type {
	case "sqlite":
		if c.Journal.DataDir == "" {
			return fmt.Errorf("journal.data_dir is required for sqlite journal")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown journal type: %q", c.Journal.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold an API token.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
