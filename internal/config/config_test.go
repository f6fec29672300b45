package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MailserverURL != DefaultMailserverURL {
		t.Errorf("MailserverURL = %q", cfg.MailserverURL)
	}
	if cfg.MailserverPort != DefaultMailserverPort {
		t.Errorf("MailserverPort = %d", cfg.MailserverPort)
	}
	if cfg.MinCheckInterval != 5*time.Minute {
		t.Errorf("MinCheckInterval = %v", cfg.MinCheckInterval)
	}
	if cfg.CheckInterval != time.Hour {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
	if cfg.DefaultOwnerID != 1 {
		t.Errorf("DefaultOwnerID = %d", cfg.DefaultOwnerID)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `mailserver_url: imap.example.org
mailserver_login: poster@example.org
mailserver_pass: hunter2
mailserver_port: 993
mailserver_tls: true
default_email_category: from-email
gmt_offset_hours: 5.5
min_check_interval: 10m
debug: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MailserverURL != "imap.example.org" {
		t.Errorf("MailserverURL = %q", cfg.MailserverURL)
	}
	if cfg.MailserverPort != 993 {
		t.Errorf("MailserverPort = %d", cfg.MailserverPort)
	}
	if !cfg.MailserverTLS {
		t.Error("MailserverTLS = false")
	}
	if cfg.DefaultEmailCategory != "from-email" {
		t.Errorf("DefaultEmailCategory = %q", cfg.DefaultEmailCategory)
	}
	if cfg.MinCheckInterval != 10*time.Minute {
		t.Errorf("MinCheckInterval = %v", cfg.MinCheckInterval)
	}
	if !cfg.Debug {
		t.Error("Debug = false")
	}
	if got := cfg.SiteOffsetSeconds(); got != 19800 {
		t.Errorf("SiteOffsetSeconds = %d, want 19800", got)
	}
	// Unset keys keep their defaults.
	if cfg.CheckInterval != time.Hour {
		t.Errorf("CheckInterval = %v", cfg.CheckInterval)
	}
}

func TestIncomplete(t *testing.T) {
	cfg := defaultConfig()
	if opt, incomplete := cfg.Incomplete(); !incomplete || opt != "mailserver_url" {
		t.Errorf("Incomplete() = %q, %v", opt, incomplete)
	}

	cfg.MailserverURL = "imap.example.org"
	if opt, incomplete := cfg.Incomplete(); !incomplete || opt != "mailserver_login" {
		t.Errorf("Incomplete() = %q, %v", opt, incomplete)
	}

	cfg.MailserverLogin = "poster@example.org"
	cfg.MailserverPass = "hunter2"
	if opt, incomplete := cfg.Incomplete(); incomplete {
		t.Errorf("Incomplete() = %q, %v; want complete", opt, incomplete)
	}

	cfg.MailserverPass = ""
	if _, incomplete := cfg.Incomplete(); !incomplete {
		t.Error("empty password should be incomplete")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := defaultConfig()
	cfg.MailserverURL = "imap.example.org"
	cfg.MailserverLogin = "poster@example.org"
	cfg.DefaultEmailCategory = "inbox"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.MailserverURL != cfg.MailserverURL {
		t.Errorf("MailserverURL = %q", loaded.MailserverURL)
	}
	if loaded.DefaultEmailCategory != "inbox" {
		t.Errorf("DefaultEmailCategory = %q", loaded.DefaultEmailCategory)
	}
	if loaded.MinCheckInterval != cfg.MinCheckInterval {
		t.Errorf("MinCheckInterval = %v", loaded.MinCheckInterval)
	}
}
