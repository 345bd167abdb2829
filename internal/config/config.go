package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const defaultConfigPath = "~/.config/pagestitch/config.json"

// Config holds user-editable settings for the pipeline.
type Config struct {
	Processing Processing `json:"processing"`
	Logging    Logging    `json:"logging"`
	Paths      Paths      `json:"paths"`
	Decoder    Decoder    `json:"decoder"`
	Stitch     Stitch     `json:"stitch"`
	Levels     Levels     `json:"levels"`
	Canvas     Canvas     `json:"canvas"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int    `json:"parallel_jobs"`
	TempDir      string `json:"temp_dir"`
	KeepPages    bool   `json:"keep_pages"` // Also write the raw page rasters
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput  string `json:"default_input"`
	DefaultOutput string `json:"default_output"`
	DatabasePath  string `json:"database_path"`
}

// Decoder controls how source documents are rasterized.
type Decoder struct {
	DPI float64 `json:"dpi"`
}

// Stitch tunes the overlap estimator.
type Stitch struct {
	BandFraction   float64 `json:"band_fraction"`
	VerticalMargin int     `json:"vertical_margin"`
	MaxShear       int     `json:"max_shear"`
	MinConfidence  float64 `json:"min_confidence"`
}

// Levels tunes intensity normalization. When Auto is set the bounds are
// measured per composite from the luminance percentiles; otherwise the
// fixed Low/High pair applies.
type Levels struct {
	Auto           bool    `json:"auto"`
	Low            uint8   `json:"low"`
	High           uint8   `json:"high"`
	LowPercentile  float64 `json:"low_percentile"`
	HighPercentile float64 `json:"high_percentile"`
}

// Canvas controls the final resize and square padding step.
type Canvas struct {
	MaxSide    int   `json:"max_side"`
	Background uint8 `json:"background"` // Grey level for padding, 255 = white
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("PAGESTITCH_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Processing.ParallelJobs < 1 {
		return fmt.Errorf("processing.parallel_jobs must be at least 1, got %d", c.Processing.ParallelJobs)
	}
	if c.Decoder.DPI <= 0 {
		return fmt.Errorf("decoder.dpi must be positive, got %g", c.Decoder.DPI)
	}
	if c.Stitch.BandFraction <= 0 || c.Stitch.BandFraction > 1 {
		return fmt.Errorf("stitch.band_fraction must be in (0, 1], got %g", c.Stitch.BandFraction)
	}
	if c.Stitch.MaxShear < 0 {
		return fmt.Errorf("stitch.max_shear must not be negative, got %d", c.Stitch.MaxShear)
	}
	if c.Stitch.MinConfidence < 0 || c.Stitch.MinConfidence > 1 {
		return fmt.Errorf("stitch.min_confidence must be in [0, 1], got %g", c.Stitch.MinConfidence)
	}
	if !c.Levels.Auto && c.Levels.High <= c.Levels.Low {
		return fmt.Errorf("levels.high (%d) must exceed levels.low (%d)", c.Levels.High, c.Levels.Low)
	}
	if c.Canvas.MaxSide < 1 {
		return fmt.Errorf("canvas.max_side must be at least 1, got %d", c.Canvas.MaxSide)
	}
	return nil
}

func defaultConfig() *Config {
	parallel := runtime.NumCPU() - 1
	if parallel < 1 {
		parallel = 1
	}
	return &Config{
		Processing: Processing{
			ParallelJobs: parallel,
			TempDir:      os.TempDir(),
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: false,
			LogDir:     "./logs",
		},
		Paths: Paths{
			DefaultInput:  ".",
			DefaultOutput: "./output",
			DatabasePath:  filepath.Join(os.TempDir(), "pagestitch.db"),
		},
		Decoder: Decoder{
			DPI: 300,
		},
		Stitch: Stitch{
			BandFraction:   0.10,
			VerticalMargin: 50,
			MaxShear:       8,
			MinConfidence:  0.15,
		},
		Levels: Levels{
			Auto:           true,
			Low:            0,
			High:           255,
			LowPercentile:  0.01,
			HighPercentile: 0.99,
		},
		Canvas: Canvas{
			MaxSide:    2000,
			Background: 255,
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}
