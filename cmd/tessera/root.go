package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose     bool
	adapterName string
	dsn         string
	schemaPath  string
	format      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Inspect and edit a tessera store from the command line",
	Long: `tessera opens a store (sqlite, fs or memory) with the models declared in a
YAML schema file and lets you query and change its records.

Settings come from flags, then TESSERA_ADAPTER, TESSERA_DSN, TESSERA_SCHEMA and
TESSERA_FORMAT. Without a schema path, tessera.yaml is searched upwards from
the working directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&adapterName, "adapter", "", "Storage adapter: sqlite, fs or memory")
	flags.StringVar(&dsn, "dsn", "", "Adapter location: sqlite DSN or fs directory")
	flags.StringVar(&schemaPath, "schema", "", "Path to the YAML schema file")
	flags.StringVar(&format, "format", "", "File format of the fs adapter: json or yaml")
}
