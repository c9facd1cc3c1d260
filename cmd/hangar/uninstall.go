package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <id>",
	Short: "Remove a plugin, even one stuck in the error state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := newHost(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		if err := host.Uninstall(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Uninstalled %s\n", args[0])
		return nil
	},
}
