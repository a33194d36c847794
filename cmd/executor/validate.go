package main

import (
	"fmt"

	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and check a config file without starting the executor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath(v)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range cfg.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "%s: ok (bot %q, gas_price %d)\n", path, cfg.Bot.Name, cfg.Bot.GasPrice)
			return nil
		},
	}
}
