package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/spf13/cobra"
)

var getInclude []string

var getCmd = &cobra.Command{
	Use:   "get <model> <id>",
	Short: "Print one record as JSON",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}
		defer s.Close()

		m, ok := s.Model(args[0])
		if !ok {
			fatal("Unknown model", fmt.Errorf("%s", args[0]))
		}

		var e *core.Entity
		if len(getInclude) > 0 {
			e, err = m.FindOne(cmd.Context(), core.Query{
				Where:   core.Where{"id": parseValue(args[1])},
				Include: getInclude,
			})
		} else {
			e, err = m.Find(cmd.Context(), parseValue(args[1]))
		}
		if err != nil {
			fatal("Failed to get record", err)
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(e); err != nil {
			fatal("Failed to encode JSON", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringSliceVarP(&getInclude, "include", "i", nil, "Relations to load")
}
