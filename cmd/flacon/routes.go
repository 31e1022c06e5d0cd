package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vitalvas/flacon/config"
	"github.com/vitalvas/flacon/mux"
)

func newRoutesCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the route table of the demo application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			app, err := newApp(cfg, appDeps{})
			if err != nil {
				return err
			}

			return printRoutes(cmd.OutOrStdout(), app.Table())
		},
	}
}

type routeRow struct {
	endpoint string
	methods  []string
	pattern  string
	score    int
}

// printRoutes writes one row per endpoint and pattern, with the methods of
// its rules, in resolution order.
func printRoutes(w io.Writer, table *mux.Table) error {
	var rows []*routeRow
	index := make(map[string]*routeRow)

	for _, rule := range table.Rules() {
		key := rule.Endpoint() + "\x00" + rule.Pattern()
		row, ok := index[key]
		if !ok {
			row = &routeRow{
				endpoint: rule.Endpoint(),
				pattern:  rule.Pattern(),
				score:    rule.Score(),
			}
			index[key] = row
			rows = append(rows, row)
		}
		row.methods = append(row.methods, rule.Method())
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tMETHODS\tPATTERN\tSCORE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", row.endpoint, strings.Join(row.methods, ","), row.pattern, row.score)
	}

	return tw.Flush()
}
