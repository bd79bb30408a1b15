package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockstreet/blockstreet/internal/content"
	"github.com/blockstreet/blockstreet/internal/core"
)

var (
	userID       string
	userUsername string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user profiles and usernames",
}

var userCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Claim a username for --user",
	Example: `  blockstreet user create --user u1 --username street_01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			profile, err := rt.Store.CreateUserProfile(cmd.Context(), userID, userUsername)
			if err != nil {
				return err
			}
			return printProfile(cmd, profile)
		})
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a profile by --user or --username",
	RunE: func(cmd *cobra.Command, args []string) error {
		byID, byName := strings.TrimSpace(userID), strings.TrimSpace(userUsername)
		if (byID == "") == (byName == "") {
			return fmt.Errorf("exactly one of --user or --username is required")
		}
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			var (
				profile *core.UserProfile
				err     error
			)
			if byID != "" {
				profile, err = rt.Store.GetUser(cmd.Context(), byID)
			} else {
				profile, err = rt.Store.GetUserByUsername(cmd.Context(), byName)
			}
			if err != nil {
				return err
			}
			if profile == nil {
				return fmt.Errorf("no profile for %s%s", byID, byName)
			}
			return printProfile(cmd, profile)
		})
	},
}

var userCheckCmd = &cobra.Command{
	Use:   "check <username>",
	Short: "Report whether a username can be claimed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		var rejected *content.RejectedError
		if err := content.ValidateUsername(name); errors.As(err, &rejected) {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: unavailable (%s)\n", name, rejected.Message)
			return err
		}
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			available, err := rt.Store.IsUsernameAvailable(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), usernameVerdict(content.NormalizeUsername(name), available))
			return err
		})
	},
}

func usernameVerdict(name string, available bool) string {
	if available {
		return name + ": available"
	}
	return name + ": taken"
}

func printProfile(cmd *cobra.Command, profile *core.UserProfile) error {
	payload, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return err
}

func init() {
	userCreateCmd.Flags().StringVar(&userID, "user", "", "User id")
	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "Username to claim")
	_ = userCreateCmd.MarkFlagRequired("user")
	_ = userCreateCmd.MarkFlagRequired("username")

	userShowCmd.Flags().StringVar(&userID, "user", "", "User id")
	userShowCmd.Flags().StringVar(&userUsername, "username", "", "Username")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userCheckCmd)
	rootCmd.AddCommand(userCmd)
}
