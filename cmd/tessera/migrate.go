package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateDrop bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the storage in line with the schema file",
	Long: `Create missing tables, columns and indexes for every model of the schema file.

With --drop, existing tables are dropped first and all data is lost.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}
		defer s.Close()

		if migrateDrop {
			err = s.Automigrate(cmd.Context())
		} else {
			err = s.Autoupdate(cmd.Context())
		}
		if err != nil {
			fatal("Migration failed", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d model(s) migrated\n", len(s.Models()))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDrop, "drop", false, "Drop and recreate every table")
}
