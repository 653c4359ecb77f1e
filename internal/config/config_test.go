package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "PANEL_FILE", "MIN_SAMPLE_SIZE", "FIT_TIMEOUT", "DATABASE_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Data.PanelFile != "data.xlsx" {
		t.Errorf("Expected default panel file data.xlsx, got %s", cfg.Data.PanelFile)
	}
	if cfg.Estimation.MinSampleSize != 10 {
		t.Errorf("Expected default min sample 10, got %d", cfg.Estimation.MinSampleSize)
	}
	if cfg.Estimation.FitTimeout != 2*time.Minute {
		t.Errorf("Expected default fit timeout 2m, got %v", cfg.Estimation.FitTimeout)
	}
	if cfg.Database.Enabled {
		t.Error("Database should be disabled without DATABASE_URL")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PANEL_FILE", "africa.xlsx")
	t.Setenv("MIN_SAMPLE_SIZE", "25")
	t.Setenv("FIT_TIMEOUT", "30s")
	t.Setenv("DATABASE_URL", "postgres://localhost/geocausal")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("PORT override not applied, got %s", cfg.Server.Port)
	}
	if cfg.Data.PanelFile != "africa.xlsx" {
		t.Errorf("PANEL_FILE override not applied, got %s", cfg.Data.PanelFile)
	}
	if cfg.Estimation.MinSampleSize != 25 {
		t.Errorf("MIN_SAMPLE_SIZE override not applied, got %d", cfg.Estimation.MinSampleSize)
	}
	if cfg.Estimation.FitTimeout != 30*time.Second {
		t.Errorf("FIT_TIMEOUT override not applied, got %v", cfg.Estimation.FitTimeout)
	}
	if !cfg.Database.Enabled {
		t.Error("Database should be enabled with DATABASE_URL set")
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("MIN_SAMPLE_SIZE", "1")
	if _, err := Load(); err == nil {
		t.Error("MIN_SAMPLE_SIZE below 2 should fail validation")
	}
}
