package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/output"
)

var (
	feedUser   string
	feedPost   string
	feedCursor string
	feedLimit  int
	feedViewer string
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show a page of the feed, a user's posts or a post's comments",
	Long: `Show one page of posts or comments, newest first.

With --viewer, items by authors the viewer blocked are hidden. Pass the
printed cursor back with --cursor to fetch the next page.`,
	Example: `  blockstreet feed --viewer u1
  blockstreet feed --user u2 --limit 5
  blockstreet feed --post p1 --cursor <cursor> --output-format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, title, err := feedQuery(feedUser, feedPost)
		if err != nil {
			return err
		}
		if feedLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			pageSize := feedLimit
			if pageSize == 0 {
				pageSize = rt.Feed.PostPageSizeOrDefault()
				if query.Collection == core.CollectionComments {
					pageSize = rt.Feed.CommentPageSizeOrDefault()
				}
			}

			page, err := rt.Feed.FetchPage(cmd.Context(), query, pageSize,
				engine.Cursor(strings.TrimSpace(feedCursor)), strings.TrimSpace(feedViewer))
			if err != nil {
				return err
			}
			return writeFormatted(cmd, "feed", func(f output.Formatter) (string, error) {
				return f.FormatPage(title, page)
			})
		})
	},
}

// feedQuery selects the collection from the --user and --post flags.
func feedQuery(userID, postID string) (engine.Query, string, error) {
	userID, postID = strings.TrimSpace(userID), strings.TrimSpace(postID)
	switch {
	case userID != "" && postID != "":
		return engine.Query{}, "", fmt.Errorf("--user and --post are mutually exclusive")
	case postID != "":
		return engine.Query{
			Collection:  core.CollectionComments,
			FilterField: "post_id",
			FilterValue: postID,
		}, "Comments on " + postID, nil
	case userID != "":
		return engine.Query{
			Collection:  core.CollectionPosts,
			FilterField: "user_id",
			FilterValue: userID,
		}, "Posts by " + userID, nil
	default:
		return engine.Query{Collection: core.CollectionPosts}, "Feed", nil
	}
}

func init() {
	rootCmd.AddCommand(feedCmd)

	feedCmd.Flags().StringVar(&feedUser, "user", "", "Show posts by this user")
	feedCmd.Flags().StringVar(&feedPost, "post", "", "Show comments on this post")
	feedCmd.Flags().StringVar(&feedCursor, "cursor", "", "Continue after this cursor")
	feedCmd.Flags().IntVar(&feedLimit, "limit", 0, "Page size (default from feed config)")
	feedCmd.Flags().StringVar(&feedViewer, "viewer", "", "Hide authors blocked by this user")
	addOutputFlags(feedCmd)
}
