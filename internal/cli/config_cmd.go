package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func (r *Root) configShow(cmd *cobra.Command) error {
	cfgPath := os.Getenv("PAGESTITCH_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/pagestitch/config.json"
	}
	cmd.Printf("Current configuration:\n")
	cmd.Printf("Config file: %s\n", cfgPath)
	cmd.Printf("\nProcessing:\n")
	cmd.Printf("  Parallel jobs: %d\n", r.cfg.Processing.ParallelJobs)
	cmd.Printf("  Keep pages: %t\n", r.cfg.Processing.KeepPages)
	cmd.Printf("  Temp directory: %s\n", r.cfg.Processing.TempDir)
	cmd.Printf("\nDecoder:\n")
	cmd.Printf("  DPI: %g\n", r.cfg.Decoder.DPI)
	cmd.Printf("\nStitch:\n")
	cmd.Printf("  Band fraction: %g\n", r.cfg.Stitch.BandFraction)
	cmd.Printf("  Vertical margin: %d px\n", r.cfg.Stitch.VerticalMargin)
	cmd.Printf("  Max shear: %d px\n", r.cfg.Stitch.MaxShear)
	cmd.Printf("  Min confidence: %g\n", r.cfg.Stitch.MinConfidence)
	cmd.Printf("\nLevels:\n")
	if r.cfg.Levels.Auto {
		cmd.Printf("  Auto bounds: percentiles [%g, %g]\n", r.cfg.Levels.LowPercentile, r.cfg.Levels.HighPercentile)
	} else {
		cmd.Printf("  Fixed bounds: [%d, %d]\n", r.cfg.Levels.Low, r.cfg.Levels.High)
	}
	cmd.Printf("\nCanvas:\n")
	cmd.Printf("  Max side: %d px\n", r.cfg.Canvas.MaxSide)
	cmd.Printf("  Background: %d\n", r.cfg.Canvas.Background)
	cmd.Printf("\nPaths:\n")
	cmd.Printf("  Default input: %s\n", r.cfg.Paths.DefaultInput)
	cmd.Printf("  Default output: %s\n", r.cfg.Paths.DefaultOutput)
	cmd.Printf("  Database: %s\n", r.cfg.Paths.DatabasePath)
	return nil
}
