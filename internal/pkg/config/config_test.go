package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("explorer-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Explorer.Cooldown != 30*time.Second {
		t.Errorf("expected 30s cooldown, got %s", cfg.Explorer.Cooldown)
	}
	if cfg.Explorer.MinLoadingDisplay != 600*time.Millisecond {
		t.Errorf("expected 600ms min display, got %s", cfg.Explorer.MinLoadingDisplay)
	}
	if cfg.Telemetry.ServiceName != "explorer-test" {
		t.Errorf("expected service name explorer-test, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EXPLORER_EXPLORER_NEAR_THRESHOLD_METERS", "750")
	cfg, err := Load("explorer-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Explorer.NearThresholdMeters != 750 {
		t.Errorf("expected 750, got %f", cfg.Explorer.NearThresholdMeters)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "routing.base_url", "explorer.near_threshold_meters"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}
