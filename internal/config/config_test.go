package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("PAGESTITCH_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Decoder.DPI != 300 {
		t.Errorf("default DPI = %g, want 300", cfg.Decoder.DPI)
	}
	if cfg.Stitch.BandFraction != 0.10 {
		t.Errorf("default band fraction = %g, want 0.10", cfg.Stitch.BandFraction)
	}
	if cfg.Canvas.MaxSide != 2000 {
		t.Errorf("default max side = %d, want 2000", cfg.Canvas.MaxSide)
	}
	if cfg.Processing.ParallelJobs < 1 {
		t.Errorf("default parallel jobs = %d, want >= 1", cfg.Processing.ParallelJobs)
	}
	if !cfg.Levels.Auto {
		t.Error("levels should default to automatic bounds")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"decoder": {"dpi": 150}, "canvas": {"max_side": 1200, "background": 255}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAGESTITCH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Decoder.DPI != 150 {
		t.Errorf("DPI = %g, want 150", cfg.Decoder.DPI)
	}
	if cfg.Canvas.MaxSide != 1200 {
		t.Errorf("max side = %d, want 1200", cfg.Canvas.MaxSide)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Stitch.MaxShear != 8 {
		t.Errorf("max shear = %d, want default 8", cfg.Stitch.MaxShear)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"stitch": {"band_fraction": 1.5, "vertical_margin": 50, "max_shear": 8, "min_confidence": 0.15}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAGESTITCH_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for band fraction above 1")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero parallel jobs", func(c *Config) { c.Processing.ParallelJobs = 0 }, false},
		{"negative dpi", func(c *Config) { c.Decoder.DPI = -72 }, false},
		{"negative shear", func(c *Config) { c.Stitch.MaxShear = -1 }, false},
		{"confidence above one", func(c *Config) { c.Stitch.MinConfidence = 1.2 }, false},
		{"fixed levels inverted", func(c *Config) { c.Levels.Auto = false; c.Levels.Low = 200; c.Levels.High = 100 }, false},
		{"zero canvas", func(c *Config) { c.Canvas.MaxSide = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
