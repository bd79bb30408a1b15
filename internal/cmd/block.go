package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var blockUser string

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage a user's block list",
}

var blockAddCmd = &cobra.Command{
	Use:   "add <blocked-user-id>",
	Short: "Hide another user's posts and comments from --user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			if err := rt.Store.BlockUser(cmd.Context(), blockUser, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s blocked %s\n", strings.TrimSpace(blockUser), strings.TrimSpace(args[0]))
			return err
		})
	},
}

var blockRemoveCmd = &cobra.Command{
	Use:     "remove <blocked-user-id>",
	Aliases: []string{"rm"},
	Short:   "Unblock a user",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			if err := rt.Store.UnblockUser(cmd.Context(), blockUser, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s unblocked %s\n", strings.TrimSpace(blockUser), strings.TrimSpace(args[0]))
			return err
		})
	},
}

var blockListJSON bool

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the users --user has blocked",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(blockUser) == "" {
			return fmt.Errorf("--user is required")
		}
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			blocked, err := rt.Store.BlockedUsers(cmd.Context(), blockUser)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if blockListJSON {
				payload, err := json.MarshalIndent(map[string]any{
					"user_id":       strings.TrimSpace(blockUser),
					"blocked_users": blocked,
				}, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(payload))
				return err
			}
			if len(blocked) == 0 {
				_, err := fmt.Fprintln(out, "(no blocked users)")
				return err
			}
			for _, id := range blocked {
				if _, err := fmt.Fprintln(out, id); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	blockCmd.PersistentFlags().StringVar(&blockUser, "user", "", "User whose block list to change")
	_ = blockCmd.MarkPersistentFlagRequired("user")
	blockListCmd.Flags().BoolVar(&blockListJSON, "json", false, "Print JSON")

	blockCmd.AddCommand(blockAddCmd)
	blockCmd.AddCommand(blockRemoveCmd)
	blockCmd.AddCommand(blockListCmd)
	rootCmd.AddCommand(blockCmd)
}
