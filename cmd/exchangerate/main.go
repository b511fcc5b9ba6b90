package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var version = "dev"

// apiKeyEnv is consulted when --api-key is not given.
const apiKeyEnv = "EXCHANGE_RATE_API_KEY"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "exchangerate",
		Short:         "Exchange rates from the command line, with a local response cache",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.apiKey, "api-key", "k", "", "API key (overrides $"+apiKeyEnv+" and the config file)")
	f.StringVar(&opts.authMethod, "auth-method", "", "how to send the API key: bearer or url")
	f.StringVarP(&opts.format, "format", "f", "", "output format: text, json or csv")
	f.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&opts.noCache, "no-cache", false, "bypass the response cache")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log cache and request details to stderr")
	f.StringVarP(&opts.configPath, "config", "c", "", "path to config file (default: XDG config dir)")
	f.StringVar(&opts.cacheBackend, "cache-backend", "", "cache backend: memory, sqlite or redis")
	f.StringVar(&opts.baseURL, "base-url", "", "API base URL")
	_ = f.MarkHidden("base-url")

	root.AddCommand(
		newLatestCmd(opts),
		newConvertCmd(opts),
		newPairCmd(opts),
		newCodesCmd(opts),
		newConfigCmd(opts),
		newCacheCmd(opts),
		newServeCmd(opts),
	)
	return root
}
