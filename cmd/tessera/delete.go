package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/spf13/cobra"
)

var (
	deleteAll   bool
	deleteWhere []string
)

var deleteCmd = &cobra.Command{
	Use:   "delete <model> [id]",
	Short: "Delete a record, the records matching --where, or every record with --all",
	Args:  cobra.RangeArgs(1, 2),
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
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		switch {
		case len(args) == 2:
			e, err := m.Find(ctx, parseValue(args[1]))
			if err != nil {
				fatal("Failed to find record", err)
			}
			if err := e.Destroy(ctx); err != nil {
				fatal("Failed to delete record", err)
			}
			fmt.Fprintf(out, "%s %v deleted\n", m.Name, e.ID())
		case len(deleteWhere) > 0:
			where, err := parseWhere(deleteWhere)
			if err != nil {
				fatal("Invalid --where", err)
			}
			n, err := m.DestroySome(ctx, core.Query{Where: where})
			if errors.Is(err, core.ErrNoMatches) {
				fmt.Fprintf(out, "no %s matched\n", m.Name)
				return
			}
			if err != nil {
				fatal("Failed to delete records", err)
			}
			fmt.Fprintf(out, "%d %s record(s) deleted\n", n, m.Name)
		case deleteAll:
			if err := m.DestroyAll(ctx); err != nil {
				fatal("Failed to delete records", err)
			}
			fmt.Fprintf(out, "all %s records deleted\n", m.Name)
		default:
			fatal("Nothing to delete", errors.New("give an id, --where or --all"))
		}
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "Delete every record of the model")
	deleteCmd.Flags().StringArrayVarP(&deleteWhere, "where", "w", nil, "Condition key=value or key:op=value (repeatable)")
}
