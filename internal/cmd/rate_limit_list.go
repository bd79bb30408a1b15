package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockstreet/blockstreet/internal/core/store"
	"github.com/blockstreet/blockstreet/internal/output"
)

var (
	rateLimitListUser   string
	rateLimitListPrefix string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit windows",
	Long: `List the persisted sliding windows in the store.

Windows kept in Redis (storage.driver: redis) are not listed; use
"rate-limit status --user" for those.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			if rt.Redis != nil {
				return fmt.Errorf("rate limit windows are stored in redis; use rate-limit status --user")
			}

			query := store.RateLimitQuery{
				User:   strings.TrimSpace(rateLimitListUser),
				Prefix: strings.TrimSpace(rateLimitListPrefix),
			}
			if query.User != "" {
				actions, _ := selectActions(rt.Limiter.Policies, "")
				query.Buckets = policyBuckets(rt.Limiter.Policies, actions)
			} else if query.Prefix == "" {
				query.All = true
			}

			entries, err := rt.Store.ListRateLimits(cmd.Context(), query)
			if err != nil {
				return err
			}
			return writeFormatted(cmd, "rate-limit.list", func(f output.Formatter) (string, error) {
				return f.FormatRateLimitEntries(entries)
			})
		})
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListUser, "user", "", "Only windows of this user")
	rateLimitListCmd.Flags().StringVar(&rateLimitListPrefix, "prefix", "", "Only windows whose user id starts with prefix")
	addOutputFlags(rateLimitListCmd)
}
