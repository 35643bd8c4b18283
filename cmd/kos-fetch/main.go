package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JanTvrdik/kos-api/pkg/config"
	"github.com/JanTvrdik/kos-api/pkg/logging"
)

var (
	Version = "dev"
)

// Command line flags
var (
	configFile string
	logLevel   string
	pageLimit  int
	outputFile string
	params     []string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kos-fetch [flags] RESOURCE...",
		Short: "Download paginated KOS API resources",
		Long: `kos-fetch downloads every page of the given KOS API resources and writes
one JSON line per Atom entry.

Configuration comes from the YAML file given by --config and KOS_* environment
variables, e.g. KOS_API_PASSWORD or KOS_DOWNLOADER_CACHE_DIR.

Examples:
  kos-fetch -c kos.yaml courses
  kos-fetch -c kos.yaml --limit 100 -p "query=department==18102" courses teachers`,
		Version:       Version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if pageLimit > 0 {
				cfg.Downloader.PageLimit = pageLimit
			}

			logging.Setup(cfg.LoggingConfig())

			extra, err := parseParams(params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputFile != "" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				out = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, args, extra, out)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.Flags().IntVarP(&pageLimit, "limit", "l", 0, "override downloader.page_limit")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write entries to file instead of stdout")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "extra query parameter key=value (repeatable)")

	return cmd
}

// parseParams turns key=value flags into query parameters.
func parseParams(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", p)
		}
		out[key] = value
	}
	return out, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("Interrupted")
			os.Exit(130)
		}
		log.Error().Err(err).Msg("kos-fetch failed")
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
