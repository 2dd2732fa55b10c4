package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/pipeline"
	"github.com/openinsure/irdai-harvester/internal/telemetry"
)

func newScrapeCmd() *cobra.Command {
	var (
		sourceType   string
		concurrency  int
		rateLimit    float64
		noResume     bool
		metadataOnly bool
		startPage    int
		endPage      int
		storageMode  string
		catalog      string
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run a full or resumed scrape of the portal's listing pages",
		Long: `Scrapes listing pages sequentially, downloads documents for records
that were not downloaded before, and appends records to the per-type
tables. Progress is checkpointed after every page; an interrupted run
resumes where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrent") {
				cfg.Download.Concurrency = concurrency
			}
			if cmd.Flags().Changed("rate-limit") {
				cfg.Download.RateLimit = rateLimit
			}
			if cmd.Flags().Changed("storage") {
				cfg.Storage.Mode = storageMode
			}
			if cmd.Flags().Changed("catalog") {
				cfg.Storage.Catalog = catalog
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Telemetry.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			types, err := resolveSourceTypes(sourceType)
			if err != nil {
				return err
			}

			records, states, objects, closeStores, err := buildStores(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStores()

			if noResume {
				if err := states.ResetAll(); err != nil {
					return err
				}
				logger.Info("starting fresh, previous progress cleared")
			}

			ctx := cmd.Context()
			telemetry.Serve(ctx, cfg.Telemetry.MetricsAddr, logger)

			p := pipeline.New(cfg, states, records, objects, logger)
			opts := pipeline.Options{
				StartPage:    startPage,
				EndPage:      endPage,
				MetadataOnly: metadataOnly,
			}
			total := runSources(ctx, types, logger,
				func(ctx context.Context, st harvest.SourceType) (harvest.Summary, error) {
					return p.HarvestSource(ctx, st, opts)
				})
			printSummary(total)
			return ctx.Err()
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "all", "source type: life, life_list, nonlife, health or all")
	cmd.Flags().IntVarP(&concurrency, "concurrent", "c", 10, "maximum concurrent downloads")
	cmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 10.0, "download starts per second, 0 = unlimited")
	cmd.Flags().BoolVar(&noResume, "no-resume", false, "start fresh, ignoring previous progress")
	cmd.Flags().BoolVarP(&metadataOnly, "metadata-only", "m", false, "scrape metadata without downloading files")
	cmd.Flags().IntVar(&startPage, "start-page", 0, "override start page")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "override end page")
	cmd.Flags().StringVarP(&storageMode, "storage", "s", "", "storage mode: local, remote or both")
	cmd.Flags().StringVar(&catalog, "catalog", "", "catalog backend: csv or sqlite")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for the /metrics endpoint")
	return cmd
}
