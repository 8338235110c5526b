package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir string, name string, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "config.json", `{"db_dsn":"dsn","provider_input_dir":"/data/provider","afrr_input_dir":"/data/afrr"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDSN != "dsn" {
		t.Fatalf("DBDSN = %q, want %q", cfg.DBDSN, "dsn")
	}
	if cfg.ProviderInputDir != "/data/provider" {
		t.Fatalf("ProviderInputDir = %q", cfg.ProviderInputDir)
	}
	if cfg.ArchiveDir != "/data/archive" {
		t.Fatalf("ArchiveDir = %q, want %q", cfg.ArchiveDir, "/data/archive")
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.CronSchedule != "@every 1h" {
		t.Fatalf("CronSchedule = %q, want %q", cfg.CronSchedule, "@every 1h")
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if len(cfg.DeliveryDateFormats) != 2 {
		t.Fatalf("DeliveryDateFormats = %v", cfg.DeliveryDateFormats)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "config.yaml", "db_dsn: dsn\nprovider_input_dir: /data/provider\nafrr_input_dir: /data/afrr\nlisten_addr: \":9090\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDSN != "dsn" {
		t.Fatalf("DBDSN = %q, want %q", cfg.DBDSN, "dsn")
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("Load empty path: expected error")
	}

	dir := t.TempDir()
	missingDB := writeTempFile(t, dir, "missing_db.json", `{"provider_input_dir":"/data/provider","afrr_input_dir":"/data/afrr"}`)
	if _, err := Load(missingDB); err == nil {
		t.Fatalf("Load missing db_dsn: expected error")
	}

	missingProvider := writeTempFile(t, dir, "missing_provider.json", `{"db_dsn":"dsn","afrr_input_dir":"/data/afrr"}`)
	if _, err := Load(missingProvider); err == nil {
		t.Fatalf("Load missing provider_input_dir: expected error")
	}

	missingAfrr := writeTempFile(t, dir, "missing_afrr.json", `{"db_dsn":"dsn","provider_input_dir":"/data/provider"}`)
	if _, err := Load(missingAfrr); err == nil {
		t.Fatalf("Load missing afrr_input_dir: expected error")
	}

	invalid := writeTempFile(t, dir, "invalid.json", "{")
	if _, err := Load(invalid); err == nil {
		t.Fatalf("Load invalid json: expected error")
	}
}
