package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stratamem/stratamem/internal/config"
	"github.com/stratamem/stratamem/internal/logging"
	"github.com/stratamem/stratamem/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show warm-tier record counts per system",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.Log.Level)

		ctx := context.Background()
		warm := store.NewWarmStore(cfg.Database.Path)
		if err := warm.Initialize(ctx); err != nil {
			return err
		}
		defer warm.Close()

		stats, err := warm.Stats(ctx)
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			cmd.Println("warm store is empty")
			return nil
		}

		total := 0
		for system, n := range stats {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d\n", color.GreenString(system), n)
			total += n
		}
		cmd.Printf("total: %d record(s)\n", total)
		return nil
	},
}
