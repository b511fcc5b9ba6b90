package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/exchangerate-client/pkg/batch"
	"github.com/Sternrassler/exchangerate-client/pkg/client"
	"github.com/Sternrassler/exchangerate-client/pkg/rates"
)

func newLatestCmd(opts *options) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "latest [BASE...]",
		Short: "Show the latest rate tables (default base: USD)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"USD"}
			}

			cfg, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := opts.newClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			bcfg := batch.DefaultConfig()
			if concurrency > 0 {
				bcfg.MaxConcurrency = concurrency
			}
			tables, err := batch.NewBatchFetcher(c, bcfg).FetchLatest(cmd.Context(), args)
			if err != nil {
				return err
			}

			ordered := make([]*rates.LatestResponse, 0, len(tables))
			seen := make(map[string]bool, len(tables))
			for _, base := range args {
				code := rates.NormalizeCode(base)
				if seen[code] {
					continue
				}
				seen[code] = true
				ordered = append(ordered, tables[code])
			}
			return opts.printer(cmd.OutOrStdout(), cfg).Latest(ordered...)
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max parallel requests when several bases are given")
	return cmd
}

func newConvertCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "convert AMOUNT FROM TO",
		Short: "Convert an amount between currencies",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			if amount < 0 {
				return fmt.Errorf("amount must be >= 0 (got %s)", args[0])
			}
			from, to := rates.NormalizeCode(args[1]), rates.NormalizeCode(args[2])
			if err := rates.ValidateCode(to); err != nil {
				return err
			}

			cfg, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := opts.newClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			table, err := c.LatestRates(cmd.Context(), from)
			if err != nil {
				return err
			}
			rate, ok := table.Rate(to)
			if !ok {
				return fmt.Errorf("%w: %s", client.ErrUnsupportedCode, to)
			}
			converted, _ := table.Convert(amount, from, to)

			return opts.printer(cmd.OutOrStdout(), cfg).Conversion(amount, from, to, converted, rate)
		},
	}
}

func newPairCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pair FROM TO",
		Short: "Show the direct conversion rate between two currencies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to := rates.NormalizeCode(args[0]), rates.NormalizeCode(args[1])

			cfg, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := opts.newClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			rate, err := c.PairRate(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout(), cfg).Pair(from, to, rate)
		},
	}
}

func newCodesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List supported currency codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c, err := opts.newClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			currencies, err := c.SupportedCodes(cmd.Context())
			if err != nil {
				return err
			}
			return opts.printer(cmd.OutOrStdout(), cfg).Codes(currencies)
		},
	}
}
