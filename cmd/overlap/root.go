package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/playlist-overlap/internal/config"
	"github.com/Sternrassler/playlist-overlap/pkg/compare"
	"github.com/Sternrassler/playlist-overlap/pkg/logging"
	"github.com/Sternrassler/playlist-overlap/pkg/overlap"
	"github.com/spf13/cobra"
)

var version = "dev"

// comparer is the part of compare.Service the commands and the API use.
type comparer interface {
	Compare(ctx context.Context, userIDs []string) (*overlap.OverlapResult, error)
	ComparePlaylists(ctx context.Context, callerID string, playlistRefs []string, mode compare.Mode) (*compare.Result, error)
	CreatorBreakdown(ctx context.Context, callerID, playlistRef string, limit int) (*overlap.CreatorBreakdown, error)
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlap",
		Short: "Compare the music of users and playlists",
		Long: `overlap reads playlists from the music catalog and reports which tracks
they share.

Configuration is read from the file given by --config (or OVERLAP_CONFIG),
then overridden by environment variables and .env files.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewPlaylistsCmd())
	cmd.AddCommand(NewCreatorsCmd())
	cmd.AddCommand(NewSetupCmd())
	cmd.AddCommand(NewRevokeCmd())
	cmd.AddCommand(NewServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err and, for comparison failures, a hint.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
	if kind := compare.Kind(err); kind != compare.KindNone && kind != compare.KindInternal {
		fmt.Fprintln(w, compare.Hint(err))
	}
}

// loadConfig reads the configuration named by the persistent flags and
// sets up logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.ResolvePath(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.Logging.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logging.Setup(cfg.LoggingSetup())
	return cfg, nil
}

// withApp loads the configuration, wires the app and runs fn with it.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

// writeBlocks prints lines packed into fenced blocks.
func writeBlocks(w io.Writer, lines []string) {
	for _, block := range compare.FormatLines(lines, compare.DefaultMessageLimit) {
		fmt.Fprintln(w, block)
	}
}
