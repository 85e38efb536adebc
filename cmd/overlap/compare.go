package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/playlist-overlap/pkg/compare"
	"github.com/Sternrassler/playlist-overlap/pkg/scope"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <user> <user>...",
		Short: "Compare the music of several users",
		Long: `Compare collects every track across the playlists of each user and
reports the tracks all of them share, with the share of the combined
collection size.

Each user must have granted playlist-read-private (see 'overlap setup').`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				return runCompare(cmd.Context(), a.service, cmd.OutOrStdout(), args)
			})
		},
	}
}

func runCompare(ctx context.Context, svc comparer, out io.Writer, users []string) error {
	result, err := svc.Compare(ctx, users)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, compare.OverlapSummary(result))
	writeBlocks(out, compare.OverlapLines(result))
	return nil
}

// NewPlaylistsCmd creates the playlists command.
func NewPlaylistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlists <link> <link>...",
		Short: "Compare playlists",
		Long: `Playlists compares playlists given as share links, URIs or ids.

In exact mode the tracks present in every playlist are listed. In consensus
mode the tracks present in at least half of the playlists (and at least
two) are listed with their counts.

Examples:
  overlap playlists --as alice https://open.spotify.com/playlist/37i9dQZF1DX0XUsuxWHRQd spotify:playlist:1h0CEZCm6IbFTbxThn6Xcs
  overlap playlists --as alice --mode consensus id1 id2 id3 id4`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := cmd.Flags().GetString("as")
			if err != nil {
				return err
			}
			modeFlag, err := cmd.Flags().GetString("mode")
			if err != nil {
				return err
			}
			mode, err := compare.ParseMode(modeFlag)
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				return runPlaylists(cmd.Context(), a.service, cmd.OutOrStdout(), caller, args, mode)
			})
		},
	}

	cmd.Flags().StringP("as", "u", "", "Caller id whose grants authorize the request")
	cmd.Flags().StringP("mode", "m", string(compare.ModeExact), "Comparison mode (exact, consensus)")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func runPlaylists(ctx context.Context, svc comparer, out io.Writer, caller string, refs []string, mode compare.Mode) error {
	result, err := svc.ComparePlaylists(ctx, caller, refs, mode)
	if err != nil {
		return err
	}

	switch {
	case result.Consensus != nil:
		fmt.Fprintln(out, compare.ConsensusSummary(result.Consensus))
		writeBlocks(out, compare.ConsensusLines(result.Consensus))
	case result.Overlap != nil:
		fmt.Fprintln(out, compare.OverlapSummary(result.Overlap))
		writeBlocks(out, compare.OverlapLines(result.Overlap))
	}
	return nil
}

// NewCreatorsCmd creates the creators command.
func NewCreatorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creators <link>",
		Short: "Show the most frequent artists of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := cmd.Flags().GetString("as")
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			return withApp(cmd, func(a *app) error {
				return runCreators(cmd.Context(), a.service, cmd.OutOrStdout(), caller, args[0], limit)
			})
		},
	}

	cmd.Flags().StringP("as", "u", "", "Caller id whose grants authorize the request")
	cmd.Flags().IntP("limit", "n", 10, "Number of artists to show")
	_ = cmd.MarkFlagRequired("as")

	return cmd
}

func runCreators(ctx context.Context, svc comparer, out io.Writer, caller, ref string, limit int) error {
	breakdown, err := svc.CreatorBreakdown(ctx, caller, ref, limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Top %d artists across %d tracks\n", len(breakdown.Shares), breakdown.Total)
	writeBlocks(out, compare.CreatorLines(breakdown))
	return nil
}

// NewSetupCmd creates the setup command.
func NewSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup <user> [scope...]",
		Short: "Record the scopes a user granted",
		Long: `Setup records the scopes a user granted after authorizing the application.
Without scopes, playlist-read-private is recorded.

Grants only persist when postgres.dsn is configured.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				return runSetup(cmd.Context(), a.store, cmd.OutOrStdout(), args[0], args[1:])
			})
		},
	}
}

func runSetup(ctx context.Context, store scopeStore, out io.Writer, user string, scopes []string) error {
	if len(scopes) == 0 {
		scopes = []string{scope.ScopePlaylistReadPrivate}
	}
	if err := store.Grant(ctx, user, scopes...); err != nil {
		return fmt.Errorf("grant %s: %w", user, err)
	}
	fmt.Fprintf(out, "Granted %s to %s\n", scope.JoinScopes(scopes), user)
	return nil
}

// NewRevokeCmd creates the revoke command.
func NewRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user>",
		Short: "Forget the scopes a user granted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				return runRevoke(cmd.Context(), a.store, cmd.OutOrStdout(), args[0])
			})
		},
	}
}

func runRevoke(ctx context.Context, store scopeStore, out io.Writer, user string) error {
	if err := store.Revoke(ctx, user); err != nil && !errors.Is(err, scope.ErrUnknownCaller) {
		return fmt.Errorf("revoke %s: %w", user, err)
	}
	fmt.Fprintf(out, "Revoked grants of %s\n", user)
	return nil
}
