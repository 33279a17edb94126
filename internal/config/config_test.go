package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/fsync",
		LogDir:  "/home/user/.local/share/fsync/log",
		Forum: ForumConfig{
			Type:         "http",
			URL:          "https://forum.example.com",
			UserID:       7,
			Timeout:      Duration{15 * time.Second},
			MaxRetries:   3,
			RetryBackoff: Duration{500 * time.Millisecond},
		},
		Source: SourceConfig{
			Type:   "filesystem",
			Root:   "/src/docs",
			Ignore: []string{"*.log", ".git"},
		},
		Import: ImportConfig{
			RepoURL:        "https://git.example.com/docs",
			MasterCategory: "Docs",
			GenerateTOC:    true,
			TOCTitle:       "Contents",
			ChunkMaxLength: 4096,
			ReplyDelay:     Duration{250 * time.Millisecond},
		},
		Journal: JournalConfig{Type: "sqlite", DataDir: "/home/user/.local/share/fsync/db"},
		Encryption: EncryptionConfig{
			PublicKeyPath:  "/home/user/.local/share/fsync/keys/fsync.pub",
			PrivateKeyPath: "/home/user/.local/share/fsync/keys/fsync.key",
			TokenPath:      "/home/user/.local/share/fsync/keys/token.age",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `reply_delay = "250ms"`) {
		t.Errorf("encoded config missing reply_delay string:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Forum.URL != original.Forum.URL {
		t.Errorf("Forum.URL = %q, want %q", got.Forum.URL, original.Forum.URL)
	}
	if got.Forum.UserID != 7 {
		t.Errorf("Forum.UserID = %d, want %d", got.Forum.UserID, 7)
	}
	if got.Forum.Timeout.Duration != 15*time.Second {
		t.Errorf("Forum.Timeout = %v, want %v", got.Forum.Timeout.Duration, 15*time.Second)
	}
	if got.Forum.RetryBackoff.Duration != 500*time.Millisecond {
		t.Errorf("Forum.RetryBackoff = %v, want %v", got.Forum.RetryBackoff.Duration, 500*time.Millisecond)
	}
	if got.Source.Root != "/src/docs" {
		t.Errorf("Source.Root = %q, want %q", got.Source.Root, "/src/docs")
	}
	if len(got.Source.Ignore) != 2 {
		t.Fatalf("len(Source.Ignore) = %d, want 2", len(got.Source.Ignore))
	}
	if got.Import.MasterCategory != "Docs" {
		t.Errorf("Import.MasterCategory = %q, want %q", got.Import.MasterCategory, "Docs")
	}
	if got.Import.ChunkMaxLength != 4096 {
		t.Errorf("Import.ChunkMaxLength = %d, want %d", got.Import.ChunkMaxLength, 4096)
	}
	if got.Import.ReplyDelay.Duration != 250*time.Millisecond {
		t.Errorf("Import.ReplyDelay = %v, want %v", got.Import.ReplyDelay.Duration, 250*time.Millisecond)
	}
	if !got.Import.GenerateTOC {
		t.Error("Import.GenerateTOC = false, want true")
	}
	if got.Journal.Type != "sqlite" {
		t.Errorf("Journal.Type = %q, want %q", got.Journal.Type, "sqlite")
	}
	if got.Encryption.TokenPath != original.Encryption.TokenPath {
		t.Errorf("Encryption.TokenPath = %q, want %q", got.Encryption.TokenPath, original.Encryption.TokenPath)
	}
}

func TestManager_Read_InvalidDuration(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(strings.NewReader("[import]\nreply_delay = \"soon\"\n"))
	if err == nil {
		t.Fatal("Read() expected error for invalid duration")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/fsync")

	if cfg.BaseDir != "/data/fsync" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/fsync")
	}
	if cfg.LogDir != "/data/fsync/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/fsync/log")
	}
	if cfg.Journal.DataDir != "/data/fsync/db" {
		t.Errorf("Journal.DataDir = %q, want %q", cfg.Journal.DataDir, "/data/fsync/db")
	}
	if cfg.Encryption.PublicKeyPath != "/data/fsync/keys/fsync.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/fsync/keys/fsync.pub")
	}
	if cfg.Encryption.TokenPath != "/data/fsync/keys/token.age" {
		t.Errorf("Encryption.TokenPath = %q, want %q", cfg.Encryption.TokenPath, "/data/fsync/keys/token.age")
	}
	if cfg.Import.ChunkMaxLength != 32768 {
		t.Errorf("Import.ChunkMaxLength = %d, want %d", cfg.Import.ChunkMaxLength, 32768)
	}
	if cfg.Import.ReplyDelay.Duration != time.Second {
		t.Errorf("Import.ReplyDelay = %v, want %v", cfg.Import.ReplyDelay.Duration, time.Second)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig("/data/fsync")
		cfg.Forum.URL = "https://forum.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults with url", mutate: func(*Config) {}},
		{name: "memory forum needs no url", mutate: func(c *Config) { c.Forum = ForumConfig{Type: "memory"} }},
		{name: "missing forum url", mutate: func(c *Config) { c.Forum.URL = "" }, wantErr: "forum.url"},
		{name: "unknown forum type", mutate: func(c *Config) { c.Forum.Type = "smtp" }, wantErr: "unknown forum type"},
		{name: "tarball without url", mutate: func(c *Config) { c.Source = SourceConfig{Type: "tarball"} }, wantErr: "source.url"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Source = SourceConfig{Type: "s3"} }, wantErr: "source.s3_bucket"},
		{name: "unknown source type", mutate: func(c *Config) { c.Source.Type = "ftp" }, wantErr: "unknown source type"},
		{name: "tiny chunk length", mutate: func(c *Config) { c.Import.ChunkMaxLength = 10 }, wantErr: "chunk_max_length"},
		{name: "negative reply delay", mutate: func(c *Config) { c.Import.ReplyDelay = Duration{-time.Second} }, wantErr: "reply_delay"},
		{name: "sqlite without data dir", mutate: func(c *Config) { c.Journal.DataDir = "" }, wantErr: "journal.data_dir"},
		{name: "memory journal", mutate: func(c *Config) { c.Journal = JournalConfig{Type: "memory"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fsync.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want %o", perm, 0600)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fsync.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "fsync.toml")
		cfg := NewConfig(dir)
		cfg.Journal = JournalConfig{Type: "memory"}
		cfg.Import.MasterCategory = "Handbook"

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Import.MasterCategory != "Handbook" {
			t.Errorf("Import.MasterCategory = %q, want %q", got.Import.MasterCategory, "Handbook")
		}
		if got.Journal.Type != "memory" {
			t.Errorf("Journal.Type = %q, want %q", got.Journal.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/fsync.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
