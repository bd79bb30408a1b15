package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockstreet/blockstreet/internal/core/store"
	"github.com/blockstreet/blockstreet/internal/output"
)

var (
	rateLimitResetAll    bool
	rateLimitResetUser   string
	rateLimitResetAction string
	rateLimitResetPrefix string
	rateLimitResetYes    bool
	rateLimitResetDryRun bool
)

var rateLimitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored rate limit windows",
	Example: `  blockstreet rate-limit reset --user u1 --action post_creation
  blockstreet rate-limit reset --prefix test- --dry-run
  blockstreet rate-limit reset --all --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			actions, err := selectActions(rt.Limiter.Policies, rateLimitResetAction)
			if err != nil {
				return err
			}

			query := store.RateLimitQuery{
				All:    rateLimitResetAll,
				User:   strings.TrimSpace(rateLimitResetUser),
				Prefix: strings.TrimSpace(rateLimitResetPrefix),
			}
			if query.User != "" {
				query.Buckets = policyBuckets(rt.Limiter.Policies, actions)
			}
			if err := query.Validate(); err != nil {
				return err
			}
			if query.All && !rateLimitResetYes && !rateLimitResetDryRun {
				return errors.New("--all requires --yes (or use --dry-run)")
			}

			sink, _, err := openCommandSink(cmd, "rate-limit.reset")
			if err != nil {
				return err
			}
			defer func() { _ = sink.close() }()

			if rt.Redis != nil {
				// Redis windows can only be cleared per user.
				if query.User == "" {
					return errors.New("rate limit windows are stored in redis; only --user resets are supported")
				}
				if rateLimitResetDryRun {
					return writeRateLimitResetResult(format, sink.writer, len(actions), 0, true)
				}
				if err := rt.Limiter.Clear(cmd.Context(), query.User, actions...); err != nil {
					return err
				}
				return writeRateLimitResetResult(format, sink.writer, len(actions), int64(len(actions)), false)
			}

			matched, err := rt.Store.CountRateLimits(cmd.Context(), query)
			if err != nil {
				return err
			}
			if rateLimitResetDryRun {
				return writeRateLimitResetResult(format, sink.writer, matched, 0, true)
			}

			deleted, err := rt.Store.ResetRateLimits(cmd.Context(), query)
			if err != nil {
				return err
			}
			return writeRateLimitResetResult(format, sink.writer, matched, deleted, false)
		})
	},
}

func writeRateLimitResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d rate limit window(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d rate limit window(s)\n", deleted, matched)
	return err
}

func init() {
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetAll, "all", false, "Reset every user's windows")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetUser, "user", "", "Reset one user's windows")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetAction, "action", "", "With --user, only this action")
	rateLimitResetCmd.Flags().StringVar(&rateLimitResetPrefix, "prefix", "", "Reset users whose id starts with prefix")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetYes, "yes", false, "Confirm destructive reset")
	rateLimitResetCmd.Flags().BoolVar(&rateLimitResetDryRun, "dry-run", false, "Show what would be deleted")
	addOutputFlags(rateLimitResetCmd)
}
