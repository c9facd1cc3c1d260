package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a plugin and its dependents per the configured policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := newHost(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		if err := host.Disable(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Disabled %s\n", args[0])
		return nil
	},
}
