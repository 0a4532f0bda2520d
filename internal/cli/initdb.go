package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stratamem/stratamem/internal/config"
	"github.com/stratamem/stratamem/internal/logging"
	"github.com/stratamem/stratamem/internal/store"
)

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the warm-tier database and schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.Log.Level)

		warm := store.NewWarmStore(cfg.Database.Path)
		if err := warm.Initialize(context.Background()); err != nil {
			return err
		}
		defer warm.Close()

		cmd.Printf("warm store ready at %s\n", cfg.Database.Path)
		return nil
	},
}
