package cli

import (
	"fmt"
	"log/slog"
	"time"

	"pagestitch/internal/config"
	"pagestitch/internal/fsutil"
	"pagestitch/internal/pipeline"
	"pagestitch/internal/storage"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "pagestitch",
		Short: "Pagestitch reassembles two-pass scans into single page images",
		Long: `Pagestitch takes documents scanned in two overlapping passes, undoes the
180 degree flip of the second pass, finds the overlap between the halves
and blends them into one normalized page image.`,
	}

	rootCmd.AddCommand(newStitchCmd(root))
	rootCmd.AddCommand(newBatchCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newReportCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newStitchCmd(root *Root) *cobra.Command {
	var (
		output        string
		dpi           float64
		keepPages     bool
		minConfidence float64
		maxSide       int
	)

	cmd := &cobra.Command{
		Use:   "stitch <document.pdf>",
		Short: "Stitch one two-page scan into a single image",
		Long: `Render both pages of a scanned document, align the overlapping halves
and write the stitched, scaled and square artifacts next to the source
(or under --output).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			if !fsutil.IsDocument(input) {
				return fmt.Errorf("%s is not a supported document", input)
			}

			extra := map[string]any{"keepPages": keepPages}
			if dpi > 0 {
				extra["dpi"] = dpi
			}
			if cmd.Flags().Changed("min-confidence") {
				extra["minConfidence"] = minConfidence
			}
			if maxSide > 0 {
				extra["maxSide"] = maxSide
			}

			return root.enqueueAndWait(cmd.Context(), root.stitchJob(input, output, extra))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: next to the source)")
	cmd.Flags().Float64Var(&dpi, "dpi", 0, "render resolution, overrides config (default 300)")
	cmd.Flags().BoolVar(&keepPages, "keep-pages", false, "also write the raw page rasters")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "minimum alignment confidence in [0, 1]")
	cmd.Flags().IntVar(&maxSide, "max-side", 0, "longest edge of the scaled artifact, overrides config")

	return cmd
}

func newBatchCmd(root *Root) *cobra.Command {
	var (
		output    string
		keepPages bool
	)

	cmd := &cobra.Command{
		Use:   "batch <input_directory>",
		Short: "Stitch every document under a directory",
		Long: `Walk a directory tree, queue each document for stitching and wait for
all of them. A document that fails is logged and skipped; the rest are
still processed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := fsutil.ListDocuments(args[0])
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				root.log.Info("no documents found", "dir", args[0])
				return nil
			}
			root.log.Info("batch started", "documents", len(docs), "dir", args[0])

			jobs := make([]pipeline.Job, 0, len(docs))
			for _, doc := range docs {
				jobs = append(jobs, root.stitchJob(doc, output, map[string]any{
					"keepPages": keepPages,
					"mode":      "batch",
				}))
			}
			return root.enqueueAndWaitAll(cmd.Context(), jobs)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: next to each source)")
	cmd.Flags().BoolVar(&keepPages, "keep-pages", false, "also write the raw page rasters")

	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		output string
		settle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <directory>...",
		Short: "Watch directories and stitch documents as they arrive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			submit := func(path string) {
				_ = root.enqueue(ctx, root.stitchJob(path, output, nil))
			}
			w, err := root.watchFn(args, settle, root.log, submit)
			if err != nil {
				return err
			}
			defer w.Stop()

			root.log.Info("watching for documents", "dirs", args)
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default: next to each source)")
	cmd.Flags().DurationVar(&settle, "settle", 0, "quiet period before a new document is processed (default 2s)")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var (
		addr       string
		watchPaths []string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP status server",
		Long: `Start an HTTP server exposing job status, per-document alignment
metrics, a server-sent event stream and a websocket feed. With --watch,
documents appearing in the given directories are stitched automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root.log.Info("starting server", "addr", addr, "watch_paths", watchPaths)
			return root.serveFn(cmd.Context(), addr, watchPaths, output, root)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "server address (host:port)")
	cmd.Flags().StringSliceVar(&watchPaths, "watch", nil, "directories to monitor for new documents")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory for watched documents")

	return cmd
}

func newReportCmd(root *Root) *cobra.Command {
	var (
		limit      int
		failedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "report [job_id]",
		Short: "Show recent jobs or the metrics of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if root.store == nil {
				return fmt.Errorf("no database configured")
			}
			if len(args) == 1 {
				return root.reportJob(cmd, args[0])
			}
			return root.reportRecent(cmd, limit, failedOnly)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of jobs to list")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "list only failed jobs")

	return cmd
}

func (r *Root) reportRecent(cmd *cobra.Command, limit int, failedOnly bool) error {
	var (
		recs []storage.JobRecord
		err  error
	)
	if failedOnly {
		recs, err = r.store.FailedJobs(limit)
	} else {
		recs, err = r.store.RecentJobs(limit)
	}
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		cmd.Println("no jobs recorded")
		return nil
	}
	for _, rec := range recs {
		line := fmt.Sprintf("%s  %-9s  %s", rec.ID, rec.Status, rec.InputPath)
		if rec.Error != "" {
			line += "  (" + rec.Error + ")"
		}
		cmd.Println(line)
	}
	return nil
}

func (r *Root) reportJob(cmd *cobra.Command, id string) error {
	metrics, err := r.store.MetricsForJob(id)
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		cmd.Printf("no metrics recorded for job %s\n", id)
		return nil
	}
	for _, m := range metrics {
		cmd.Printf("%s\n", m.DocumentPath)
		cmd.Printf("  overlap:    %d px\n", m.OverlapPx)
		cmd.Printf("  shear:      %d px\n", m.ShearPx)
		cmd.Printf("  confidence: %.3f\n", m.Confidence)
		cmd.Printf("  composite:  %dx%d\n", m.CompositeWidth, m.CompositeHeight)
		cmd.Printf("  levels:     [%d, %d]\n", m.LevelsLow, m.LevelsHigh)
	}
	return nil
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long:  "Show or validate pagestitch configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow(cmd)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				return err
			}
			cmd.Println("configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("pagestitch v1.0.0")
		},
	}
}
