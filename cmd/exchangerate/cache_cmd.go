package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/exchangerate-client/pkg/cache"
	"github.com/Sternrassler/exchangerate-client/pkg/client"
	"github.com/Sternrassler/exchangerate-client/pkg/config"
	"github.com/Sternrassler/exchangerate-client/pkg/format"
	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	// withBackend opens the configured backend without requiring an API key.
	withBackend := func(cmd *cobra.Command, fn func(cfg *config.Config, b cache.Backend) error) error {
		cfg, err := opts.load(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		b, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()
		return fn(cfg, b)
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(cfg *config.Config, b cache.Backend) error {
				sr, ok := b.(cache.StatsReporter)
				if !ok {
					return fmt.Errorf("%s backend does not report statistics", b.Name())
				}
				s, err := sr.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if cfg.DefaultFormat == string(format.JSON) {
					return opts.printer(cmd.OutOrStdout(), cfg).Value(s)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s\nEntries: %d\nTyped:   %d\nRaw:     %d\nExpired: %d\n",
					s.Backend, s.Entries, s.Typed, s.Raw, s.Expired)
				return nil
			})
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(cfg *config.Config, b cache.Backend) error {
				if !expiredOnly {
					if err := b.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "All cache entries cleared.")
					return nil
				}

				p, ok := b.(cache.Purger)
				if !ok {
					return fmt.Errorf("%s backend cannot purge expired entries", b.Name())
				}
				n, err := p.PurgeExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired cache entries.\n", n)
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries")

	invalidateCmd := &cobra.Command{
		Use:       "invalidate ENDPOINT [PARAMS...]",
		Short:     "Drop one cached response, e.g. 'latest USD' or 'pair USD EUR'",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{client.EndpointLatest, client.EndpointPair, client.EndpointCodes},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := invalidationKey(args[0], args[1:])
			if err != nil {
				return err
			}
			return withBackend(cmd, func(cfg *config.Config, b cache.Backend) error {
				if err := b.Invalidate(cmd.Context(), key.String()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Invalidated %s\n", key)
				return nil
			})
		},
	}

	cmd.AddCommand(statsCmd, clearCmd, invalidateCmd)
	return cmd
}

// invalidationKey builds the cache key the client uses for endpoint and params.
func invalidationKey(endpoint string, params []string) (cache.Key, error) {
	want := map[string]int{
		client.EndpointLatest: 1,
		client.EndpointPair:   2,
		client.EndpointCodes:  0,
	}
	n, ok := want[endpoint]
	if !ok {
		return cache.Key{}, fmt.Errorf("unknown endpoint %q (expected latest, pair or codes)", endpoint)
	}
	if len(params) != n {
		return cache.Key{}, fmt.Errorf("%s takes %d currency code(s), got %d", endpoint, n, len(params))
	}

	codes := make([]string, len(params))
	for i, p := range params {
		codes[i] = rates.NormalizeCode(p)
		if err := rates.ValidateCode(codes[i]); err != nil {
			return cache.Key{}, err
		}
	}
	return cache.NewKey(endpoint, codes...), nil
}
