package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/output"
)

var (
	rateLimitStatusUser   string
	rateLimitStatusAction string
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and manage rate limit windows",
}

var rateLimitStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show a user's usage of each rate limited action",
	Example: `  blockstreet rate-limit status --user u1 --action post_creation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := strings.TrimSpace(rateLimitStatusUser)
		if userID == "" {
			return fmt.Errorf("--user is required")
		}

		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			actions, err := selectActions(rt.Limiter.Policies, rateLimitStatusAction)
			if err != nil {
				return err
			}
			statuses := make([]core.RateLimitStatus, 0, len(actions))
			for _, action := range actions {
				status, err := rt.Limiter.Status(cmd.Context(), userID, action)
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return writeFormatted(cmd, "rate-limit.status."+userID, func(f output.Formatter) (string, error) {
				return f.FormatRateLimits(statuses)
			})
		})
	},
}

// selectActions returns the named action, or every configured action in
// display order when name is empty.
func selectActions(policies map[core.ActionType]core.RateLimitPolicy, name string) ([]core.ActionType, error) {
	if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
		action := core.ActionType(name)
		if _, ok := policies[action]; !ok {
			return nil, fmt.Errorf("unknown action %q", name)
		}
		return []core.ActionType{action}, nil
	}

	actions := []core.ActionType{}
	seen := map[core.ActionType]bool{}
	for _, action := range core.Actions() {
		if _, ok := policies[action]; ok {
			actions = append(actions, action)
			seen[action] = true
		}
	}
	extra := []core.ActionType{}
	for action := range policies {
		if !seen[action] {
			extra = append(extra, action)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(actions, extra...), nil
}

// policyBuckets returns the storage key suffixes of the given actions.
func policyBuckets(policies map[core.ActionType]core.RateLimitPolicy, actions []core.ActionType) []string {
	buckets := make([]string, 0, len(actions))
	for _, action := range actions {
		if policy, ok := policies[action]; ok {
			buckets = append(buckets, policy.KeyPrefix)
		}
	}
	return buckets
}

func init() {
	rateLimitStatusCmd.Flags().StringVar(&rateLimitStatusUser, "user", "", "User to inspect")
	rateLimitStatusCmd.Flags().StringVar(&rateLimitStatusAction, "action", "", "Only this action (post_creation|comment_creation)")
	addOutputFlags(rateLimitStatusCmd)

	rateLimitCmd.AddCommand(rateLimitStatusCmd)
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
