package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockstreet/blockstreet/internal/core"
)

var (
	reportUser        string
	reportTargetType  string
	reportTargetID    string
	reportTargetUser  string
	reportReason      string
	reportDescription string
	reportListStatus  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "File and list moderation reports",
}

var reportCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "File a report against a post, comment or user",
	Example: `  blockstreet report create --user u1 --target-type post --target-id p9 --reason spam`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := core.Report{
			ReporterUserID: strings.TrimSpace(reportUser),
			TargetType:     core.ReportTarget(strings.ToLower(strings.TrimSpace(reportTargetType))),
			TargetID:       strings.TrimSpace(reportTargetID),
			TargetUserID:   strings.TrimSpace(reportTargetUser),
			Reason:         core.ReportReason(strings.ToLower(strings.TrimSpace(reportReason))),
			Description:    strings.TrimSpace(reportDescription),
		}
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			filed, err := rt.Store.ReportContent(cmd.Context(), report)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", filed.ID, filed.Status)
			return err
		})
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := core.ReportStatus(strings.ToLower(strings.TrimSpace(reportListStatus)))
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			reports, err := rt.Store.ListReports(cmd.Context(), status)
			if err != nil {
				return err
			}
			payload, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return err
		})
	},
}

func init() {
	reportCreateCmd.Flags().StringVar(&reportUser, "user", "", "Reporting user id")
	reportCreateCmd.Flags().StringVar(&reportTargetType, "target-type", "", "Target kind: post|comment|user")
	reportCreateCmd.Flags().StringVar(&reportTargetID, "target-id", "", "Reported post, comment or user id")
	reportCreateCmd.Flags().StringVar(&reportTargetUser, "target-user", "", "Author of the reported content")
	reportCreateCmd.Flags().StringVar(&reportReason, "reason", string(core.ReportOther),
		"Reason: spam|harassment|inappropriate_content|hate_speech|misinformation|other")
	reportCreateCmd.Flags().StringVar(&reportDescription, "description", "", "Free-form details")

	reportListCmd.Flags().StringVar(&reportListStatus, "status", "", "Only reports in this status: pending|reviewed|resolved")

	reportCmd.AddCommand(reportCreateCmd)
	reportCmd.AddCommand(reportListCmd)
	rootCmd.AddCommand(reportCmd)
}
