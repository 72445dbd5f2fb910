package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/tessera/pkg/core"
	"github.com/spf13/cobra"
)

var (
	listJSON    bool
	listWhere   []string
	listInclude []string
	listOrder   string
	listLimit   int
	listSkip    int
)

var listCmd = &cobra.Command{
	Use:   "list <model-pattern>",
	Short: "List records of the matching models",
	Long: `List records of every model whose name matches the pattern (e.g. "User" or "Blog*").

Conditions use --where key=value or --where key:op=value, where op is one of
gt, gte, lt, lte, ne, inq, nin, between, like, nlike or glob.`,
	Args: cobra.ExactArgs(1),
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
		where, err := parseWhere(listWhere)
		if err != nil {
			fatal("Invalid --where", err)
		}
		q := core.Query{Where: where, Order: listOrder, Limit: listLimit, Skip: listSkip}
		if len(listInclude) > 0 {
			q.Include = listInclude
		}

		out := cmd.OutOrStdout()
		result := make(map[string][]*core.Entity, len(models))
		for _, m := range models {
			items, err := m.All(cmd.Context(), q)
			if err != nil {
				fatal(fmt.Sprintf("Failed to list %s", m.Name), err)
			}
			result[m.Name] = items
		}

		if listJSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			var payload any = result
			if len(models) == 1 {
				payload = result[models[0].Name]
			}
			if err := encoder.Encode(payload); err != nil {
				fatal("Failed to encode JSON", err)
			}
			return
		}

		for _, m := range models {
			for _, e := range result[m.Name] {
				fmt.Fprintf(out, "%s %v %s\n", m.Name, e.ID(), formatFields(e.ToObject(true)))
				for _, rel := range listInclude {
					fmt.Fprintf(out, "  %s: %s\n", rel, describeCached(e, strings.TrimSpace(rel)))
				}
			}
		}
	},
}

func describeCached(e *core.Entity, name string) string {
	v, ok := e.Cached(name)
	if !ok {
		return "-"
	}
	switch x := v.(type) {
	case []*core.Entity:
		ids := make([]string, len(x))
		for i, item := range x {
			ids[i] = fmt.Sprint(item.ID())
		}
		return "[" + strings.Join(ids, ", ") + "]"
	case *core.Entity:
		if x == nil {
			return "nil"
		}
		return fmt.Sprint(x.ID())
	}
	return fmt.Sprint(v)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringArrayVarP(&listWhere, "where", "w", nil, "Condition key=value or key:op=value (repeatable)")
	listCmd.Flags().StringSliceVarP(&listInclude, "include", "i", nil, "Relations to load")
	listCmd.Flags().StringVarP(&listOrder, "order", "o", "", `Order clause, e.g. "name DESC, age"`)
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum records per model")
	listCmd.Flags().IntVar(&listSkip, "skip", 0, "Records to skip per model")
}
