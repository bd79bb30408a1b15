package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blockstreet/blockstreet/internal/content"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	"github.com/blockstreet/blockstreet/internal/observability"
)

var (
	postUser      string
	postContent   string
	postMediaURL  string
	postMediaType string

	commentUser    string
	commentPost    string
	commentContent string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create, edit and delete posts",
}

var postCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a post, subject to the posting rate limit",
	Example: `  blockstreet post create --user u1 --content "hello street"
  blockstreet post create --user u1 --content "look" --media-url https://cdn/x.jpg --media-type image`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := checkedContent(postContent)
		if err != nil {
			return err
		}
		post := core.NewPost{
			UserID:    strings.TrimSpace(postUser),
			Content:   text,
			MediaURL:  strings.TrimSpace(postMediaURL),
			MediaType: core.MediaType(strings.ToLower(strings.TrimSpace(postMediaType))),
		}

		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			id, err := engine.WithRateLimit(cmd.Context(), rt.Limiter, post.UserID, core.ActionPostCreation,
				func(ctx context.Context) (string, error) {
					return rt.Store.CreatePost(ctx, post)
				})
			if err != nil {
				return describeDenial(cmd, err)
			}
			observability.CLILogger.Debug("Post created", zap.String("post_id", id), zap.String("user_id", post.UserID))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})
	},
}

var postEditCmd = &cobra.Command{
	Use:     "edit <post-id>",
	Short:   "Replace the text of a post --user wrote",
	Example: `  blockstreet post edit 3f2a... --user u1 --content "fixed typo"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			post, err := rt.Store.UpdatePost(cmd.Context(), postUser, args[0], postContent)
			if err != nil {
				return err
			}
			observability.CLILogger.Debug("Post updated", zap.String("post_id", post.ID), zap.String("user_id", post.AuthorID))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), post.Content)
			return err
		})
	},
}

var postDeleteCmd = &cobra.Command{
	Use:     "delete <post-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a post --user wrote, with its comments",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			if err := rt.Store.DeletePost(cmd.Context(), postUser, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %s\n", strings.TrimSpace(args[0]))
			return err
		})
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Create and delete comments",
}

var commentCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Comment on a post, subject to the commenting rate limit",
	Example: `  blockstreet comment create --user u1 --post p1 --content "nice"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := checkedContent(commentContent)
		if err != nil {
			return err
		}
		comment := core.NewComment{
			PostID:  strings.TrimSpace(commentPost),
			UserID:  strings.TrimSpace(commentUser),
			Content: text,
		}
		if comment.PostID == "" {
			return fmt.Errorf("--post is required")
		}

		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			id, err := engine.WithRateLimit(cmd.Context(), rt.Limiter, comment.UserID, core.ActionCommentCreation,
				func(ctx context.Context) (string, error) {
					return rt.Store.CreateComment(ctx, comment)
				})
			if err != nil {
				return describeDenial(cmd, err)
			}
			observability.CLILogger.Debug("Comment created", zap.String("comment_id", id), zap.String("post_id", comment.PostID))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		})
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:     "delete <comment-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a comment --user wrote",
	Example: `  blockstreet comment delete c9... --post p1 --user u1`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(commentPost) == "" {
			return fmt.Errorf("--post is required")
		}
		return withRuntime(cmd.Context(), func(rt *appRuntime) error {
			if err := rt.Store.DeleteComment(cmd.Context(), commentUser, commentPost, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %s\n", strings.TrimSpace(args[0]))
			return err
		})
	},
}

// checkedContent sanitizes text and applies the content filter.
func checkedContent(raw string) (string, error) {
	text := content.Sanitize(raw)
	if err := content.Validate(text); err != nil {
		return "", err
	}
	return text, nil
}

// describeDenial prints the user-facing denial message and keeps the error.
func describeDenial(cmd *cobra.Command, err error) error {
	var denied *engine.RateLimitExceededError
	if errors.As(err, &denied) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), denied.Message)
	}
	return err
}

func init() {
	postCmd.PersistentFlags().StringVar(&postUser, "user", "", "Author user id")
	_ = postCmd.MarkPersistentFlagRequired("user")
	postCreateCmd.Flags().StringVar(&postContent, "content", "", "Post text")
	postCreateCmd.Flags().StringVar(&postMediaURL, "media-url", "", "Attached media URL")
	postCreateCmd.Flags().StringVar(&postMediaType, "media-type", "", "Attached media type: image|video")
	postEditCmd.Flags().StringVar(&postContent, "content", "", "New post text")
	_ = postEditCmd.MarkFlagRequired("content")
	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postEditCmd)
	postCmd.AddCommand(postDeleteCmd)

	commentCmd.PersistentFlags().StringVar(&commentUser, "user", "", "Author user id")
	commentCmd.PersistentFlags().StringVar(&commentPost, "post", "", "Post the comment belongs to")
	_ = commentCmd.MarkPersistentFlagRequired("user")
	commentCreateCmd.Flags().StringVar(&commentContent, "content", "", "Comment text")
	commentCmd.AddCommand(commentCreateCmd)
	commentCmd.AddCommand(commentDeleteCmd)

	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(commentCmd)
}
