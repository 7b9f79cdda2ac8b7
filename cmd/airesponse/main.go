package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dan-solli/airesponse/pkg/airesponse"
	"github.com/dan-solli/airesponse/pkg/config"
	"github.com/dan-solli/airesponse/pkg/llm"
)

var version = "dev"

type rootFlags struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "airesponse",
		Short:         "Cached model queries and structured extraction",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to config file (defaults plus environment when empty)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newQueryCmd(flags),
		newExtractCmd(flags),
		newCacheCmd(flags),
	)
	return root
}

func (f *rootFlags) load() (*config.Config, error) {
	if f.configPath == "" {
		cfg := config.Default()
		cfg.Credentials = llm.CredentialsFromEnv()
		return cfg, nil
	}
	return config.Load(f.configPath)
}

func (f *rootFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// open builds a client from the loaded config; adjust runs before construction
func (f *rootFlags) open(adjust func(*config.Config)) (*airesponse.Client, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	c, err := airesponse.New(cfg)
	if err != nil {
		return nil, err
	}
	return c.WithLogger(f.logger()), nil
}
