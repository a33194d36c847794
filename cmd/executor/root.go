package main

import (
	"github.com/Faith-Rounds/flash-arb-bot/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// newRootCmd builds the command tree. Running the root command without a
// subcommand is the same as "serve".
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:          "executor",
		Short:        "Flash-arb bot executor with live config reload",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	bindConfigFlag(v, root.PersistentFlags())

	root.AddCommand(newServeCmd(v), newValidateCmd(v), newTokenCmd(v))
	return root
}

// bindConfigFlag registers --config and resolves it in order: the flag,
// then CONFIG_PATH, then config.DefaultPath.
func bindConfigFlag(v *viper.Viper, fs *pflag.FlagSet) {
	fs.StringP("config", "c", "",
		"path to the bot config file (env "+config.EnvPath+", default "+config.DefaultPath+")")

	v.BindPFlag("config", fs.Lookup("config")) //nolint:errcheck
	v.BindEnv("config", config.EnvPath)         //nolint:errcheck
	v.SetDefault("config", config.DefaultPath)
}

func configPath(v *viper.Viper) string {
	return v.GetString("config")
}
