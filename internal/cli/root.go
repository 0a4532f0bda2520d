package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/stratamem/stratamem/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"      _             _\n" +
		"  ___| |_ _ __ __ _| |_ __ _ _ __ ___   ___ _ __ ___\n" +
		" / __| __| '__/ _` | __/ _` | '_ ` _ \\ / _ \\ '_ ` _ \\\n" +
		" \\__ \\ |_| | | (_| | || (_| | | | | | |  __/ | | | | |\n" +
		" |___/\\__|_|  \\__,_|\\__\\__,_|_| |_| |_|\\___|_| |_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "stratamem",
	Short: "stratamem - tiered conversation-memory ingestion",
	Long:  color.CyanString(logo) + "\nIngests conversation-memory uploads, filters duplicates, and persists them into hot and warm storage tiers.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("stratamem " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(initdbCmd)
	rootCmd.AddCommand(statusCmd)
}
