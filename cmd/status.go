package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/state"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show progress of current and previous scraping sessions",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			snapshot := state.NewStore(cfg.DataDir, logger).Snapshot()

			fmt.Println("Sessions")
			fmt.Printf("  %-12s %-10s %10s %10s\n", "TYPE", "STATUS", "LAST PAGE", "RECORDS")
			for _, st := range harvest.AllSourceTypes() {
				session, ok := snapshot.Sessions[st]
				if !ok {
					fmt.Printf("  %-12s %-10s %10d %10d\n", st, "not started", 0, 0)
					continue
				}
				fmt.Printf("  %-12s %-10s %10d %10d\n",
					st, session.Status, session.LastCompletedPage, session.TotalRecords)
				if session.Error != "" {
					fmt.Printf("  %-12s error: %s\n", "", session.Error)
				}
			}
			fmt.Println()
			fmt.Printf("Completed downloads: %d\n", len(snapshot.CompletedDownloads))
			fmt.Printf("Failed downloads:    %d\n", len(snapshot.FailedDownloads))
			for _, fd := range snapshot.FailedDownloads {
				fmt.Printf("  %s (retries: %d) %s\n", fd.URL, fd.RetryCount, fd.Error)
			}
			fmt.Printf("Last updated:        %s\n", snapshot.LastUpdated.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}
