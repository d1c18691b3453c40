package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ListenAddr != "127.0.0.1:8787" {
		t.Fatalf("listen addr = %q", c.ListenAddr)
	}
	if c.RateLimitWindowMinutes != 60 || c.RateLimitMaxRequests != 100 {
		t.Fatalf("rate limit defaults = %d/%d", c.RateLimitWindowMinutes, c.RateLimitMaxRequests)
	}
	if c.DefaultSendQuota != 50 {
		t.Fatalf("default quota = %d", c.DefaultSendQuota)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "welcomeagent.yaml")
	body := []byte("listen_addr: 0.0.0.0:9000\nrate_limit:\n  max_requests: 25\noauth:\n  client_id: cid-from-file\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("listen addr = %q", c.ListenAddr)
	}
	if c.RateLimitMaxRequests != 25 {
		t.Fatalf("max requests = %d", c.RateLimitMaxRequests)
	}
	if c.GoogleClientID != "cid-from-file" {
		t.Fatalf("client id = %q", c.GoogleClientID)
	}
	// untouched keys keep their defaults
	if c.RateLimitWindowMinutes != 60 {
		t.Fatalf("window minutes = %d", c.RateLimitWindowMinutes)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WELCOMEAGENT_GOOGLE_CLIENT_ID", "cid-env")
	t.Setenv("WELCOMEAGENT_GOOGLE_CLIENT_SECRET", "secret-env")
	t.Setenv("WELCOMEAGENT_DB_PATH", "/tmp/wa.db")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.GoogleClientID != "cid-env" || c.GoogleClientSecret != "secret-env" {
		t.Fatalf("oauth client = %q/%q", c.GoogleClientID, c.GoogleClientSecret)
	}
	if c.DatabasePath != "/tmp/wa.db" {
		t.Fatalf("db path = %q", c.DatabasePath)
	}
}
