package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jask/phone/internal/config"
)

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the config file",
		Long: `Write the settings resolved from flags, environment and any existing file
back to the config file. The password is never written.

Example:
  phone config init --caller 1001 --realm sip.example.com --server wss://sip.example.com:8443`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			if err := config.Save(o.configFile, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config written")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the account settings are complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VALID: %s via %s\n", cfg.Account.Identity(), cfg.Account.ServerURL)
			return nil
		},
	})
	return cmd
}
