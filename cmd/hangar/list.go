package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins and their states",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		host, err := newHost(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		records := host.List()
		if len(records) == 0 {
			fmt.Println("No plugins installed")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVERSION\tSTATE\tLAST ERROR")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID(), rec.Version(), rec.State, rec.LastError)
		}
		return w.Flush()
	},
}
