package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"listforge/internal/engine/cache"
	"listforge/internal/engine/discovery"
	"listforge/internal/engine/marketplace"
	"listforge/internal/engine/pipeline"
	"listforge/internal/engine/report"
	"listforge/internal/engine/stages"
	"listforge/pkg/config"
	"listforge/pkg/logger"
)

func newRunCmd() *cobra.Command {
	var (
		mode             string
		inputDir         string
		templatePath     string
		referenceListing string
		dryRun           bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the listing pipeline",
		Long: `Run the listing pipeline over the input directory.

Modes:
  validate   process exactly the first discovered design (sanity check)
  batch      process all discovered designs in batches of 10, fail-fast

Examples:
  listforge run --mode validate
  listforge run --mode batch --input ./designs
  listforge run --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if mode != "" {
				cfg.Pipeline.Mode = mode
			}
			if inputDir != "" {
				cfg.Pipeline.InputDir = inputDir
			}
			if templatePath != "" {
				cfg.Pipeline.TemplatePath = templatePath
			}
			if referenceListing != "" {
				cfg.Pipeline.ReferenceListingID = referenceListing
			}
			// dry runs never write to the marketplace
			if dryRun {
				cfg.Pipeline.Mode = "validate"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runPipeline(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "processing mode: validate or batch")
	cmd.Flags().StringVar(&inputDir, "input", "", "directory containing finished design files")
	cmd.Flags().StringVar(&templatePath, "template", "", "delivery document template path")
	cmd.Flags().StringVar(&referenceListing, "reference-listing", "", "listing ID to use as reference template")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "force validate mode regardless of --mode")

	return cmd
}

func runPipeline(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheManager, err := cache.NewManager(cache.Config{
		Dirs:             cfg.Cache.Dirs,
		RetentionCount:   cfg.Cache.RetentionCount,
		MaxCacheSizeMB:   cfg.Cache.MaxCacheSizeMB,
		CleanupOnSuccess: cfg.Cache.CleanupOnSuccess,
	})
	if err != nil {
		return err
	}

	client, err := marketplace.NewClient(cfg.Marketplace)
	if err != nil {
		return err
	}
	// template lookup is best effort: created listings simply carry no
	// static images when it fails
	if err := client.Prepare(ctx); err != nil {
		logger.Warn("template listing lookup failed, continuing without static images", "error", err)
	}

	deps := pipeline.Deps{
		Cache:      cacheManager,
		Discoverer: discovery.New(cfg.Pipeline.InputDir),
		Mockups:    stages.NewLocalMockupGenerator(cfg.Cache.Dirs[0]),
		SEO:        stages.SlugSEO{},
		PDF:        stages.NewLocalPDFCustomizer(cfg.Pipeline.TemplatePath, pdfDir(cfg)),
		Uploader:   stages.NewLocalArchiveUploader("output/uploads"),
		Lister:     client,
	}

	orchestrator, err := pipeline.New(cfg.Pipeline, cfg.Marketplace, deps)
	if err != nil {
		return err
	}

	summary, err := orchestrator.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(report.Render(summary))

	if !summary.Success {
		return fmt.Errorf("pipeline run %s finished with failures", summary.RunID)
	}
	return nil
}

// pdfDir picks the managed directory the delivery documents are written to:
// the first configured directory whose name mentions pdf, else the second
// directory, else the first.
func pdfDir(cfg *config.Config) string {
	for _, dir := range cfg.Cache.Dirs {
		if strings.Contains(strings.ToLower(dir), "pdf") {
			return dir
		}
	}
	if len(cfg.Cache.Dirs) > 1 {
		return cfg.Cache.Dirs[1]
	}
	return cfg.Cache.Dirs[0]
}
