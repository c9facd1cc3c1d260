package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var extensionsCmd = &cobra.Command{
	Use:   "extensions [interface]",
	Short: "List live extension points, optionally filtered by interface",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := newHost(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		iface := ""
		if len(args) == 1 {
			iface = args[0]
		}

		handles := host.QueryExtensions(iface)
		if len(handles) == 0 {
			fmt.Println("No extension points registered")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OWNER\tNAME\tINTERFACE")
		for _, h := range handles {
			fmt.Fprintf(w, "%s\t%s\t%s\n", h.OwnerID(), h.Name(), h.Interface())
		}
		return w.Flush()
	},
}
