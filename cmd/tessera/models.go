package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Describe the models of the schema file",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := openStore()
		if err != nil {
			fatal("Failed to open store", err)
		}
		defer s.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, m := range s.Models() {
			fmt.Fprintf(w, "%s\n", m.Name)
			for _, name := range m.Properties() {
				p, _ := m.Property(name)
				column := ""
				if p.Column != "" {
					column = "column " + p.Column
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\n", name, p.Kind, column)
			}
			for _, r := range m.Relations() {
				fmt.Fprintf(w, "  %s\t%s %s\tforeign key %s\n", r.Name, r.Kind, r.Target.Name, r.ForeignKey)
			}
		}
		if err := w.Flush(); err != nil {
			fatal("Failed to write output", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
