package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hangar/internal/app"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-enable the plugins recorded as enabled before the last shutdown",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		host, err := app.New(cmd.Context(), cfg, newLogger())
		if err != nil {
			return err
		}
		defer func() { _ = host.Close() }()

		if err := host.Reconcile(cmd.Context()); err != nil {
			return err
		}

		enabled := host.EnabledPlugins()
		if len(enabled) == 0 {
			fmt.Println("Nothing to reconcile")
			return nil
		}
		fmt.Printf("Enabled: %s\n", strings.Join(enabled, ", "))
		return nil
	},
}
