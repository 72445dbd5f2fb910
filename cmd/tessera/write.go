package main

import (
	"fmt"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/spf13/cobra"
)

var (
	writeSet       []string
	skipValidation bool
)

func saveOptions() []core.SaveOption {
	if skipValidation {
		return []core.SaveOption{core.SkipValidation()}
	}
	return nil
}

var createCmd = &cobra.Command{
	Use:   "create <model>",
	Short: "Create a record from --set key=value pairs",
	Args:  cobra.ExactArgs(1),
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
		data, err := parseAssignments(writeSet)
		if err != nil {
			fatal("Invalid --set", err)
		}
		e, err := m.Create(cmd.Context(), data, saveOptions()...)
		if err != nil {
			fatal("Failed to create record", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v created\n", m.Name, e.ID())
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <model> <id>",
	Short: "Change fields of a record with --set key=value pairs",
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
		data, err := parseAssignments(writeSet)
		if err != nil {
			fatal("Invalid --set", err)
		}
		e, err := m.Find(cmd.Context(), parseValue(args[1]))
		if err != nil {
			fatal("Failed to find record", err)
		}
		for k, v := range data {
			e.Set(k, v)
		}
		if err := e.Save(cmd.Context(), saveOptions()...); err != nil {
			fatal("Failed to save record", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %v updated\n", m.Name, e.ID())
	},
}

func init() {
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringArrayVarP(&writeSet, "set", "s", nil, "Field assignment key=value (repeatable)")
		c.Flags().BoolVar(&skipValidation, "skip-validation", false, "Write without running validations")
	}
}
