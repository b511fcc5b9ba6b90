package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/exchangerate-client/pkg/config"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit the configuration file",
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "config file\t%s\n", opts.configFile())
			fmt.Fprintf(tw, "api_key\t%s\n", cfg.MaskedAPIKey())
			fmt.Fprintf(tw, "auth_method\t%s\n", cfg.AuthMethod)
			fmt.Fprintf(tw, "default_format\t%s\n", cfg.DefaultFormat)
			fmt.Fprintf(tw, "use_color\t%t\n", cfg.UseColor)
			fmt.Fprintf(tw, "use_cache\t%t\n", cfg.UseCache)
			fmt.Fprintf(tw, "log_level\t%s\n", cfg.LogLevel)
			fmt.Fprintf(tw, "cache.backend\t%s\n", cfg.Cache.Backend)
			fmt.Fprintf(tw, "cache.path\t%s\n", cfg.CachePath())
			fmt.Fprintf(tw, "cache.redis_addr\t%s\n", cfg.Cache.RedisAddr)
			fmt.Fprintf(tw, "cache.redis_db\t%d\n", cfg.Cache.RedisDB)
			fmt.Fprintf(tw, "cache.pair_ttl\t%s\n", cfg.Cache.PairTTL)
			fmt.Fprintf(tw, "cache.codes_ttl\t%s\n", cfg.Cache.CodesTTL)
			return tw.Flush()
		},
	}

	setCmd := &cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Set a configuration value",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.Keys(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile())
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(opts.configFile()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().Save(opts.configFile()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration reset to defaults.")
			return nil
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), opts.configFile())
		},
	}

	cmd.AddCommand(viewCmd, setCmd, resetCmd, pathCmd)
	return cmd
}
