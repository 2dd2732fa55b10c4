package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/state"
)

func newResetCmd() *cobra.Command {
	var (
		sourceType string
		confirmed  bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset scraper state",
		Long:  "Replaces session progress with fresh defaults. Destructive and immediate.",
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

			var st harvest.SourceType
			if sourceType != "" {
				var ok bool
				st, ok = harvest.ParseSourceType(sourceType)
				if !ok {
					return fmt.Errorf("invalid source type %q", sourceType)
				}
			}

			if !confirmed {
				prompt := "Reset ALL state? This clears progress for every source type."
				if st != "" {
					prompt = fmt.Sprintf("Reset state for %s?", st)
				}
				if !confirm(prompt) {
					fmt.Println("Cancelled.")
					return nil
				}
			}

			states := state.NewStore(cfg.DataDir, logger)
			if st != "" {
				if err := states.ResetSession(st); err != nil {
					return err
				}
				fmt.Printf("Reset state for %s.\n", st)
				return nil
			}
			if err := states.ResetAll(); err != nil {
				return err
			}
			fmt.Println("Reset all state.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "source type to reset, or omit for all")
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "skip confirmation")
	return cmd
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
