// Package cmd defines and implements the CLI commands for the
// irdai-harvester executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openinsure/irdai-harvester/internal/config"
	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/logging"
	"github.com/openinsure/irdai-harvester/internal/objstore"
	"github.com/openinsure/irdai-harvester/internal/sink"
	"github.com/openinsure/irdai-harvester/internal/state"
)

var (
	cfgFile string
	dataDir string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "irdai-harvester",
		Short: "Incrementally harvests insurance product listings and documents",
		Long: `irdai-harvester scrapes the IRDAI portal's product listing pages,
tracks which records and documents were already retrieved, appends new
records to durable tables and stores document files locally or in
S3-compatible object storage.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVarP(&dataDir, "output", "o", "", "data directory for downloads, metadata and state")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newDeltaCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRetryCmd())
	cmd.AddCommand(newResetCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging.Development)
}

// buildStores assembles the record store, state store and (when the
// storage mode calls for it) the object store. The returned closer must
// run before exit.
func buildStores(cfg config.Config, logger *zap.Logger) (harvest.RecordStore, *state.Store, harvest.ObjectStore, func(), error) {
	states := state.NewStore(cfg.DataDir, logger)

	var records harvest.RecordStore
	closer := func() {}
	switch cfg.Storage.Catalog {
	case config.CatalogSQLite:
		store, err := sink.OpenSQLite(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		records = store
		closer = func() {
			if err := store.Close(); err != nil {
				logger.Warn("close catalog", zap.Error(err))
			}
		}
	default:
		records = sink.NewCSVStore(cfg.DataDir)
	}

	var objects harvest.ObjectStore
	if cfg.Storage.Mode != config.StorageLocal {
		store, err := objstore.New(objstore.Config{
			AccountID:       cfg.Storage.R2.AccountID,
			AccessKeyID:     cfg.Storage.R2.AccessKeyID,
			SecretAccessKey: cfg.Storage.R2.SecretAccessKey,
			Bucket:          cfg.Storage.R2.Bucket,
			PublicURLBase:   cfg.Storage.R2.PublicURLBase,
			Verify:          cfg.Storage.R2.Verify,
		})
		if err != nil {
			closer()
			return nil, nil, nil, nil, fmt.Errorf("configure object storage: %w", err)
		}
		logger.Info("object storage enabled", zap.String("bucket", store.Bucket()))
		objects = store
	}

	return records, states, objects, closer, nil
}

// resolveSourceTypes expands the --type flag value.
func resolveSourceTypes(value string) ([]harvest.SourceType, error) {
	if value == "" || value == "all" {
		return harvest.AllSourceTypes(), nil
	}
	st, ok := harvest.ParseSourceType(value)
	if !ok {
		return nil, fmt.Errorf("invalid source type %q (valid: life, life_list, nonlife, health, all)", value)
	}
	return []harvest.SourceType{st}, nil
}

func printSummary(total harvest.Summary) {
	fmt.Println()
	fmt.Println("Summary")
	fmt.Printf("  Records seen:      %d\n", total.RecordsSeen)
	fmt.Printf("  Records appended:  %d\n", total.RecordsAppended)
	fmt.Printf("  Files downloaded:  %d\n", total.FilesDownloaded)
	fmt.Printf("  Files failed:      %d\n", total.FilesFailed)
	if total.FilesUploaded > 0 {
		fmt.Printf("  Files uploaded:    %d\n", total.FilesUploaded)
	}
}

// runSources executes fn per source type; a failing source type aborts
// only its own processing, remaining types proceed.
func runSources(
	ctx context.Context,
	types []harvest.SourceType,
	logger *zap.Logger,
	fn func(context.Context, harvest.SourceType) (harvest.Summary, error),
) harvest.Summary {
	var total harvest.Summary
	for _, st := range types {
		if ctx.Err() != nil {
			break
		}
		summary, err := fn(ctx, st)
		total.Add(summary)
		if err != nil {
			logger.Error("source type failed",
				zap.String("source_type", string(st)),
				zap.Error(err))
			continue
		}
		logger.Info("source type finished",
			zap.String("source_type", string(st)),
			zap.Int("records_seen", summary.RecordsSeen),
			zap.Int("records_appended", summary.RecordsAppended),
			zap.Int("files_downloaded", summary.FilesDownloaded),
			zap.Int("files_failed", summary.FilesFailed))
	}
	return total
}
