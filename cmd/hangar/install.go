package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install <package>",
	Short: "Verify and install a plugin package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := newHost(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		id, err := host.Install(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Installed %s\n", id)
		return nil
	},
}
