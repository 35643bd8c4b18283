package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/pagination"
)

const sampleConfig = `
api:
  base_url: https://kos.example.com/api/3
  username: novakj
  password: secret
  semester: B232
  timeout: 30s
downloader:
  max_connections: 4
  cache_dir: /var/cache/kos
logging:
  level: debug
  pretty: true
metrics:
  addr: 127.0.0.1:9100
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://kos.example.com/api/3" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.API.Timeout)
	}
	if cfg.Downloader.MaxConnections != 4 {
		t.Errorf("MaxConnections = %d, want 4", cfg.Downloader.MaxConnections)
	}
	if cfg.Downloader.PageLimit != pagination.DefaultLimit {
		t.Errorf("PageLimit = %d, want default %d", cfg.Downloader.PageLimit, pagination.DefaultLimit)
	}
	if cfg.API.UserAgent != client.DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.API.UserAgent)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Errorf("Metrics.Addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KOS_API_PASSWORD", "from-env")
	t.Setenv("KOS_DOWNLOADER_MAX_CONNECTIONS", "7")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Password != "from-env" {
		t.Errorf("Password = %q, want from-env", cfg.API.Password)
	}
	if cfg.Downloader.MaxConnections != 7 {
		t.Errorf("MaxConnections = %d, want 7", cfg.Downloader.MaxConnections)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("KOS_API_BASE_URL", "https://kos.example.com/api/3")
	t.Setenv("KOS_API_USERNAME", "novakj")
	t.Setenv("KOS_API_PASSWORD", "secret")
	t.Setenv("KOS_API_SEMESTER", "B241")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.Semester != "B241" {
		t.Errorf("Semester = %q, want B241", cfg.API.Semester)
	}
	if cfg.API.Timeout != client.DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.API.Timeout, client.DefaultTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			API: APIConfig{
				BaseURL:  "https://kos.example.com/api/3",
				Username: "novakj",
				Password: "secret",
				Semester: "B232",
			},
			Downloader: DownloaderConfig{MaxConnections: 1, PageLimit: 1000},
			Logging:    LoggingConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing base url", mutate: func(c *Config) { c.API.BaseURL = "" }, wantErr: "api.base_url"},
		{name: "missing username", mutate: func(c *Config) { c.API.Username = "" }, wantErr: "api.username"},
		{name: "missing password", mutate: func(c *Config) { c.API.Password = "" }, wantErr: "api.password"},
		{name: "missing semester", mutate: func(c *Config) { c.API.Semester = "" }, wantErr: "api.semester"},
		{name: "zero connections", mutate: func(c *Config) { c.Downloader.MaxConnections = 0 }, wantErr: "max_connections"},
		{name: "zero page limit", mutate: func(c *Config) { c.Downloader.PageLimit = 0 }, wantErr: "page_limit"},
		{
			name: "two cache backends",
			mutate: func(c *Config) {
				c.Downloader.CacheDir = "/tmp/kos"
				c.Downloader.RedisAddr = "localhost:6379"
			},
			wantErr: "mutually exclusive",
		},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cc := cfg.ClientConfig()
	if cc.Username != "novakj" || cc.Timeout != 30*time.Second || cc.MaxConnsPerHost != 4 {
		t.Errorf("ClientConfig() = %+v", cc)
	}

	dc := cfg.DownloaderConfig()
	if err := dc.Validate(); err != nil {
		t.Errorf("DownloaderConfig().Validate() error = %v", err)
	}
	if dc.Semester != "B232" || dc.MaxConnections != 4 {
		t.Errorf("DownloaderConfig() = %+v", dc)
	}

	lc := cfg.LoggingConfig()
	if lc.Level != "debug" || !lc.Pretty {
		t.Errorf("LoggingConfig() = %+v", lc)
	}
}
