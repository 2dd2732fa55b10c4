package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openinsure/irdai-harvester/internal/pipeline"
)

func newRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Retry previously failed downloads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			records, states, objects, closeStores, err := buildStores(cfg, logger)
			if err != nil {
				return err
			}
			defer closeStores()

			pending := states.FailedDownloads()
			if len(pending) == 0 {
				fmt.Println("No failed downloads to retry.")
				return nil
			}
			fmt.Printf("Retrying %d failed downloads...\n", len(pending))

			p := pipeline.New(cfg, states, records, objects, logger)
			succeeded, failed, err := p.RetryFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Successful:    %d\n", succeeded)
			fmt.Printf("Still failing: %d\n", failed)
			return nil
		},
	}
}
