package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enableAll bool

var enableCmd = &cobra.Command{
	Use:   "enable [id]",
	Short: "Enable a plugin, or all plugins with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !enableAll && len(args) == 0 {
			return fmt.Errorf("either a plugin id or --all is required")
		}

		host, err := newHost(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		if enableAll {
			if err := host.EnableAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("All plugins enabled")
			return nil
		}

		if err := host.Enable(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Enabled %s\n", args[0])
		return nil
	},
}

func init() {
	enableCmd.Flags().BoolVar(&enableAll, "all", false, "enable every installed plugin in dependency order")
}
