package source

import (
	"context"
	"fmt"
	"testing"

	"forumsync/internal/config"
)

func TestNewSourceFromConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		cfg      config.SourceConfig
		wantType string
		wantErr  bool
	}{
		{name: "filesystem", cfg: config.SourceConfig{Type: "filesystem", Root: dir}, wantType: "*fs.Source"},
		{name: "filesystem without root", cfg: config.SourceConfig{Type: "filesystem"}, wantErr: true},
		{name: "filesystem missing root", cfg: config.SourceConfig{Type: "filesystem", Root: dir + "/missing"}, wantErr: true},
		{name: "tarball", cfg: config.SourceConfig{Type: "tarball", URL: "https://git.example.com/repo.tar.gz"}, wantType: "*source.TarballSource"},
		{name: "tarball without url", cfg: config.SourceConfig{Type: "tarball"}, wantErr: true},
		{name: "s3", cfg: config.SourceConfig{Type: "s3", S3Bucket: "docs", S3Region: "us-east-1", S3AccessKeyID: "id", S3SecretAccessKey: "secret"}, wantType: "*source.S3Source"},
		{name: "s3 without bucket", cfg: config.SourceConfig{Type: "s3"}, wantErr: true},
		{name: "memory", cfg: config.SourceConfig{Type: "memory"}, wantType: "*source.MemorySource"},
		{name: "unknown", cfg: config.SourceConfig{Type: "svn"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSourceFromConfig(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %T", src)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewSourceFromConfig() error = %v", err)
			}
			if got := fmt.Sprintf("%T", src); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
		})
	}
}

func TestNewSourceFromConfig_StripComponents(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1},
		{2, 2},
		{-1, 0},
	}
	for _, tt := range tests {
		src, err := NewSourceFromConfig(context.Background(), config.SourceConfig{Type: "tarball", URL: "http://x", StripComponents: tt.in})
		if err != nil {
			t.Fatalf("NewSourceFromConfig() error = %v", err)
		}
		if got := src.(*TarballSource).stripComponents; got != tt.want {
			t.Errorf("strip_components %d: got %d, want %d", tt.in, got, tt.want)
		}
	}
}
