package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countWhere []string

var countCmd = &cobra.Command{
	Use:   "count <model-pattern>",
	Short: "Count records of the matching models",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}
		defer s.Close()

		models, err := matchModels(s, args[0])
		if err != nil {
			fatal("Failed to resolve models", err)
		}
		where, err := parseWhere(countWhere)
		if err != nil {
			fatal("Invalid --where", err)
		}
		for _, m := range models {
			n, err := m.Count(cmd.Context(), where)
			if err != nil {
				fatal(fmt.Sprintf("Failed to count %s", m.Name), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", m.Name, n)
		}
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	countCmd.Flags().StringArrayVarP(&countWhere, "where", "w", nil, "Condition key=value or key:op=value (repeatable)")
}
