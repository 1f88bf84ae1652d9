package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
output_dir: /data/studies
export_dir: /data/exports
seed: 42
workers: 4
logging:
  level: debug
pacs:
  url: http://pacs:8042/dicom-web
  calling_ae: SYNTH_SCU
  called_ae: ORTHANC
  timeout: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OutputDir != "/data/studies" {
		t.Errorf("OutputDir = %q, want /data/studies", cfg.OutputDir)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.PACS.URL != "http://pacs:8042/dicom-web" {
		t.Errorf("PACS.URL = %q", cfg.PACS.URL)
	}
	if cfg.PACS.CalledAE != "ORTHANC" {
		t.Errorf("PACS.CalledAE = %q, want ORTHANC", cfg.PACS.CalledAE)
	}
	if cfg.PACS.Timeout != 10*time.Second {
		t.Errorf("PACS.Timeout = %s, want 10s", cfg.PACS.Timeout)
	}
}

func TestLoad_AbsentKeysKeepDefaults(t *testing.T) {
	path := writeConfig(t, "seed: 7\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Default()
	if cfg.OutputDir != want.OutputDir {
		t.Errorf("OutputDir = %q, want default %q", cfg.OutputDir, want.OutputDir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.PACS.CallingAE != want.PACS.CallingAE {
		t.Errorf("PACS.CallingAE = %q, want %q", cfg.PACS.CallingAE, want.PACS.CallingAE)
	}
	if cfg.PACS.Timeout != 30*time.Second {
		t.Errorf("PACS.Timeout = %s, want 30s", cfg.PACS.Timeout)
	}
	if cfg.Seed != 7 {
		t.Errorf("Seed = %d, want 7", cfg.Seed)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("SYNTH_OUT", "/tmp/env-studies")
	path := writeConfig(t, "output_dir: ${SYNTH_OUT}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.OutputDir != "/tmp/env-studies" {
		t.Errorf("OutputDir = %q, want /tmp/env-studies", cfg.OutputDir)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantSub string
	}{
		{"malformed yaml", "output_dir: [unclosed", "parse config"},
		{"empty output dir", `output_dir: ""`, "output_dir"},
		{"negative workers", "workers: -2", "workers"},
		{"bad log level", "logging:\n  level: loud", "logging.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("Expected an error for %s", tc.name)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected an error for a missing config file")
	}
}
