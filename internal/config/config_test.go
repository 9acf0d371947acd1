package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() Config {
	return Config{
		Server:     ServerConfig{Host: "0.0.0.0", Port: 8080},
		Engine:     EngineConfig{Workers: 2, QueueSize: 64, MaxVertices: 1000, BufferSegments: 64},
		Projection: ProjectionConfig{UTMZone: 32},
		Storage:    StorageConfig{Type: "local", LocalPath: "./layers"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"vertex cap disabled", func(c *Config) { c.Engine.MaxVertices = 0 }, false},
		{"southern zone", func(c *Config) { c.Projection = ProjectionConfig{UTMZone: 56, South: true} }, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"no workers", func(c *Config) { c.Engine.Workers = 0 }, true},
		{"no queue", func(c *Config) { c.Engine.QueueSize = 0 }, true},
		{"negative vertex cap", func(c *Config) { c.Engine.MaxVertices = -1 }, true},
		{"coarse buffer", func(c *Config) { c.Engine.BufferSegments = 3 }, true},
		{"utm zone zero", func(c *Config) { c.Projection.UTMZone = 0 }, true},
		{"utm zone 61", func(c *Config) { c.Projection.UTMZone = 61 }, true},
		{"negative sync interval", func(c *Config) { c.Layers.SyncInterval = -time.Second }, true},
		{"rate limit without rate", func(c *Config) {
			c.Server.RateLimit = RateLimitConfig{Enabled: true, Burst: 1}
		}, true},
		{"tls without domains", func(c *Config) { c.TLS = TLSConfig{Enabled: true, Email: "ops@example.com"} }, true},
		{"tls without email", func(c *Config) { c.TLS = TLSConfig{Enabled: true, Domains: []string{"geo.example.com"}} }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, true},
		{"local without path", func(c *Config) { c.Storage.LocalPath = "" }, true},
		{"s3 without region", func(c *Config) {
			c.Storage = StorageConfig{Type: "s3", S3: S3Config{Bucket: "layers"}}
		}, true},
		{"azure with connection string", func(c *Config) {
			c.Storage = StorageConfig{Type: "azure", Azure: AzureConfig{Container: "layers", ConnectionString: "UseDevelopmentStorage=true"}}
		}, false},
		{"http without base url", func(c *Config) { c.Storage = StorageConfig{Type: "http"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Workers != 2 || cfg.Engine.QueueSize != 64 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Engine.MaxVertices != 1_000_000 {
		t.Errorf("max vertices = %d, want 1000000", cfg.Engine.MaxVertices)
	}
	if cfg.Projection.UTMZone != 32 || cfg.Projection.South {
		t.Errorf("projection = %+v, want zone 32N", cfg.Projection)
	}
	if cfg.Server.MaxBodyBytes != 64<<20 {
		t.Errorf("max body bytes = %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
engine:
  workers: 8
  max_vertices: 0
projection:
  utm_zone: 33
layers:
  sync_interval: 5m
log:
  format: text
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEOALGEBRA_PROJECTION_SOUTH", "true")
	t.Setenv("GEOALGEBRA_SERVER_PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.Workers != 8 || cfg.Engine.MaxVertices != 0 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Projection.UTMZone != 33 || !cfg.Projection.South {
		t.Errorf("projection = %+v, want zone 33S", cfg.Projection)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Layers.SyncInterval != 5*time.Minute {
		t.Errorf("sync interval = %v, want 5m", cfg.Layers.SyncInterval)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log format = %q, want text", cfg.Log.Format)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("projection:\n  utm_zone: 99\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an out of range UTM zone")
	}
}

func TestAddress(t *testing.T) {
	c := ServerConfig{Host: "127.0.0.1", Port: 8443}
	if got := c.Address(); got != "127.0.0.1:8443" {
		t.Errorf("Address() = %q", got)
	}
}
