package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blockstreet/blockstreet/internal/content"
	"github.com/blockstreet/blockstreet/internal/core"
	"github.com/blockstreet/blockstreet/internal/core/engine"
	apperrors "github.com/blockstreet/blockstreet/internal/errors"
	"github.com/blockstreet/blockstreet/internal/observability"
	"github.com/blockstreet/blockstreet/internal/server/middleware"
)

// MaxPageSize caps the limit query parameter.
const MaxPageSize = 100

const maxBodyBytes = 64 << 10

// Store is the persistence the API writes through.
type Store interface {
	GetPost(ctx context.Context, postID string) (*core.Item, error)
	CreatePost(ctx context.Context, post core.NewPost) (string, error)
	UpdatePost(ctx context.Context, userID, postID, text string) (*core.Item, error)
	DeletePost(ctx context.Context, userID, postID string) error
	CreateComment(ctx context.Context, comment core.NewComment) (string, error)
	DeleteComment(ctx context.Context, userID, postID, commentID string) error

	GetUser(ctx context.Context, userID string) (*core.UserProfile, error)
	CreateUserProfile(ctx context.Context, userID, username string) (*core.UserProfile, error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)

	BlockUser(ctx context.Context, userID, blockedID string) error
	UnblockUser(ctx context.Context, userID, blockedID string) error
	BlockedUsers(ctx context.Context, userID string) ([]string, error)
	IsUserBlocked(ctx context.Context, userID, otherID string) (bool, error)

	ReportContent(ctx context.Context, report core.Report) (*core.Report, error)
}

// API serves the /v1 routes.
type API struct {
	Store   Store
	Feed    *engine.FeedFetcher
	Limiter *engine.RateLimiter
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Use(middleware.Viewer)

	r.Get("/feed", a.GetFeed)
	r.Get("/users/{userID}/posts", a.GetUserPosts)
	r.Get("/posts/{postID}/comments", a.GetPostComments)

	r.Post("/posts", a.CreatePost)
	r.Get("/posts/{postID}", a.GetPost)
	r.Patch("/posts/{postID}", a.UpdatePost)
	r.Delete("/posts/{postID}", a.DeletePost)
	r.Post("/posts/{postID}/comments", a.CreateComment)
	r.Delete("/posts/{postID}/comments/{commentID}", a.DeleteComment)

	r.Put("/profile", a.PutProfile)
	r.Get("/profile", a.GetProfile)
	r.Get("/users/{userID}", a.GetUser)
	r.Get("/usernames/{username}", a.CheckUsername)

	r.Get("/rate-limits", a.GetRateLimits)
	r.Get("/rate-limits/{action}", a.GetRateLimit)

	r.Get("/blocks", a.ListBlocks)
	r.Post("/blocks/{userID}", a.Block)
	r.Delete("/blocks/{userID}", a.Unblock)

	r.Post("/reports", a.CreateReport)
}

// CreatedResponse is returned by the create endpoints.
type CreatedResponse struct {
	ID string `json:"id"`
}

// PostRequest is the body of POST /v1/posts.
type PostRequest struct {
	Content        string `json:"content"`
	MediaURL       string `json:"media_url,omitempty"`
	MediaType      string `json:"media_type,omitempty"`
	MediaThumbnail string `json:"media_thumbnail,omitempty"`
}

// CommentRequest is the body of POST /v1/posts/{postID}/comments.
type CommentRequest struct {
	Content string `json:"content"`
}

// EditRequest is the body of PATCH /v1/posts/{postID}.
type EditRequest struct {
	Content string `json:"content"`
}

// ProfileRequest is the body of PUT /v1/profile.
type ProfileRequest struct {
	Username string `json:"username"`
}

// UserResponse is another user's public profile as seen by the viewer.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Blocked   bool      `json:"blocked"`
}

// UsernameResponse reports whether a username can be claimed.
type UsernameResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ReportRequest is the body of POST /v1/reports.
type ReportRequest struct {
	TargetType     string `json:"target_type"`
	TargetID       string `json:"target_id"`
	TargetUserID   string `json:"target_user_id"`
	TargetUsername string `json:"target_username"`
	Reason         string `json:"reason"`
	Description    string `json:"description,omitempty"`
}

// BlocksResponse lists the viewer's blocked users.
type BlocksResponse struct {
	BlockedUsers []string `json:"blocked_users"`
}

// RateLimitsResponse lists the viewer's status for every action.
type RateLimitsResponse struct {
	RateLimits []core.RateLimitStatus `json:"rate_limits"`
}

// GetFeed serves GET /v1/feed: newest posts first, minus authors the viewer blocked.
func (a *API) GetFeed(w http.ResponseWriter, r *http.Request) {
	a.servePage(w, r, engine.Query{Collection: core.CollectionPosts}, a.Feed.PostPageSizeOrDefault())
}

// GetUserPosts serves GET /v1/users/{userID}/posts.
func (a *API) GetUserPosts(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("user id is required"))
		return
	}
	q := engine.Query{Collection: core.CollectionPosts, FilterField: "user_id", FilterValue: userID}
	a.servePage(w, r, q, a.Feed.PostPageSizeOrDefault())
}

// GetPostComments serves GET /v1/posts/{postID}/comments.
func (a *API) GetPostComments(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(chi.URLParam(r, "postID"))
	if postID == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("post id is required"))
		return
	}
	q := engine.Query{Collection: core.CollectionComments, FilterField: "post_id", FilterValue: postID}
	a.servePage(w, r, q, a.Feed.CommentPageSizeOrDefault())
}

func (a *API) servePage(w http.ResponseWriter, r *http.Request, q engine.Query, defaultSize int) {
	pageSize, err := parseLimit(r.URL.Query().Get("limit"), defaultSize)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "limit must be between 1 and 100"))
		return
	}
	cursor := engine.Cursor(strings.TrimSpace(r.URL.Query().Get("cursor")))

	page, err := a.Feed.FetchPage(r.Context(), q, pageSize, cursor, middleware.ViewerID(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// CreatePost serves POST /v1/posts. The post is written only when the
// viewer's posting limit allows it.
func (a *API) CreatePost(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req PostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text := content.Sanitize(req.Content)
	if err := content.Validate(text); err != nil {
		respondWithError(w, r, err)
		return
	}

	post := core.NewPost{
		UserID:         viewer,
		Content:        text,
		MediaURL:       strings.TrimSpace(req.MediaURL),
		MediaType:      core.MediaType(strings.TrimSpace(req.MediaType)),
		MediaThumbnail: strings.TrimSpace(req.MediaThumbnail),
	}
	id, err := engine.WithRateLimit(r.Context(), a.Limiter, viewer, core.ActionPostCreation,
		func(ctx context.Context) (string, error) {
			return a.Store.CreatePost(ctx, post)
		})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	logInfo("Post created", zap.String("post_id", id), zap.String("user_id", viewer))
	respondJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// CreateComment serves POST /v1/posts/{postID}/comments under the
// commenting limit.
func (a *API) CreateComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(chi.URLParam(r, "postID"))

	var req CommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	text := content.Sanitize(req.Content)
	if err := content.Validate(text); err != nil {
		respondWithError(w, r, err)
		return
	}

	comment := core.NewComment{PostID: postID, UserID: viewer, Content: text}
	id, err := engine.WithRateLimit(r.Context(), a.Limiter, viewer, core.ActionCommentCreation,
		func(ctx context.Context) (string, error) {
			return a.Store.CreateComment(ctx, comment)
		})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	logInfo("Comment created", zap.String("comment_id", id), zap.String("post_id", postID), zap.String("user_id", viewer))
	respondJSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// GetRateLimit serves GET /v1/rate-limits/{action} for the viewer.
func (a *API) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	action := core.ActionType(chi.URLParam(r, "action"))

	status, err := a.Limiter.Status(r.Context(), viewer, action)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// GetRateLimits serves GET /v1/rate-limits: the viewer's status for every built-in action.
func (a *API) GetRateLimits(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	resp := RateLimitsResponse{RateLimits: []core.RateLimitStatus{}}
	for _, action := range core.Actions() {
		status, err := a.Limiter.Status(r.Context(), viewer, action)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		resp.RateLimits = append(resp.RateLimits, status)
	}
	respondJSON(w, http.StatusOK, resp)
}

// ListBlocks serves GET /v1/blocks.
func (a *API) ListBlocks(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	blocked, err := a.Store.BlockedUsers(r.Context(), viewer)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, BlocksResponse{BlockedUsers: blocked})
}

// Block serves POST /v1/blocks/{userID}.
func (a *API) Block(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := a.Store.BlockUser(r.Context(), viewer, chi.URLParam(r, "userID")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unblock serves DELETE /v1/blocks/{userID}.
func (a *API) Unblock(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := a.Store.UnblockUser(r.Context(), viewer, chi.URLParam(r, "userID")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateReport serves POST /v1/reports. The reporter is the viewer.
func (a *API) CreateReport(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req ReportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	report, err := a.Store.ReportContent(r.Context(), core.Report{
		ReporterUserID: viewer,
		TargetType:     core.ReportTarget(req.TargetType),
		TargetID:       req.TargetID,
		TargetUserID:   req.TargetUserID,
		TargetUsername: req.TargetUsername,
		Reason:         core.ReportReason(req.Reason),
		Description:    strings.TrimSpace(req.Description),
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, report)
}

// GetPost serves GET /v1/posts/{postID}. Posts by authors the viewer has
// blocked are reported as missing.
func (a *API) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := a.Store.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if viewer := middleware.ViewerID(r.Context()); viewer != "" {
		blocked, err := a.Store.IsUserBlocked(r.Context(), viewer, post.AuthorID)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		if blocked {
			respondWithError(w, r, apperrors.NewNotFoundError("post "+post.ID+" not found"))
			return
		}
	}
	respondJSON(w, http.StatusOK, post)
}

// UpdatePost serves PATCH /v1/posts/{postID}. Only the author may edit.
func (a *API) UpdatePost(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(chi.URLParam(r, "postID"))

	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	post, err := a.Store.UpdatePost(r.Context(), viewer, postID, req.Content)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	logInfo("Post updated", zap.String("post_id", postID), zap.String("user_id", viewer))
	respondJSON(w, http.StatusOK, post)
}

// DeletePost serves DELETE /v1/posts/{postID}. Only the author may delete;
// the post's comments go with it.
func (a *API) DeletePost(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(chi.URLParam(r, "postID"))
	if err := a.Store.DeletePost(r.Context(), viewer, postID); err != nil {
		respondWithError(w, r, err)
		return
	}

	logInfo("Post deleted", zap.String("post_id", postID), zap.String("user_id", viewer))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteComment serves DELETE /v1/posts/{postID}/comments/{commentID}.
// Only the comment's author may delete it.
func (a *API) DeleteComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	postID := strings.TrimSpace(chi.URLParam(r, "postID"))
	commentID := strings.TrimSpace(chi.URLParam(r, "commentID"))
	if err := a.Store.DeleteComment(r.Context(), viewer, postID, commentID); err != nil {
		respondWithError(w, r, err)
		return
	}

	logInfo("Comment deleted", zap.String("comment_id", commentID), zap.String("post_id", postID), zap.String("user_id", viewer))
	w.WriteHeader(http.StatusNoContent)
}

// PutProfile serves PUT /v1/profile: the viewer claims a username.
func (a *API) PutProfile(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	profile, err := a.Store.CreateUserProfile(r.Context(), viewer, req.Username)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	logInfo("Profile saved", zap.String("user_id", viewer), zap.String("username", profile.Username))
	respondJSON(w, http.StatusOK, profile)
}

// GetProfile serves GET /v1/profile, the viewer's own profile including
// their block list.
func (a *API) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	profile, err := a.Store.GetUser(r.Context(), viewer)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if profile == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("no profile for "+viewer))
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// GetUser serves GET /v1/users/{userID}. Block lists stay private; the
// response only says whether the viewer blocked this user.
func (a *API) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	profile, err := a.Store.GetUser(r.Context(), userID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if profile == nil {
		respondWithError(w, r, apperrors.NewNotFoundError("user "+userID+" not found"))
		return
	}

	resp := UserResponse{ID: profile.ID, Username: profile.Username, CreatedAt: profile.CreatedAt}
	if viewer := middleware.ViewerID(r.Context()); viewer != "" {
		resp.Blocked, err = a.Store.IsUserBlocked(r.Context(), viewer, profile.ID)
		if err != nil {
			respondWithError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// CheckUsername serves GET /v1/usernames/{username}. Names that fail
// validation are unavailable, with the reason.
func (a *API) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(chi.URLParam(r, "username"))
	resp := UsernameResponse{Username: content.NormalizeUsername(username)}

	var rejected *content.RejectedError
	if err := content.ValidateUsername(username); errors.As(err, &rejected) {
		resp.Reason = rejected.Message
		respondJSON(w, http.StatusOK, resp)
		return
	}

	available, err := a.Store.IsUsernameAvailable(r.Context(), username)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	resp.Available = available
	if !available {
		resp.Reason = "That username is already taken"
	}
	respondJSON(w, http.StatusOK, resp)
}

func requireViewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	viewer := middleware.ViewerID(r.Context())
	if viewer == "" {
		respondWithError(w, r, apperrors.NewUnauthorizedError("The "+middleware.ViewerHeader+" header is required"))
		return "", false
	}
	return viewer, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		message := "request body must be valid JSON"
		if errors.Is(err, io.EOF) {
			message = "request body is required"
		}
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, message))
		return false
	}
	return true
}

func parseLimit(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if limit < 1 || limit > MaxPageSize {
		return 0, errors.New("limit out of range")
	}
	return limit, nil
}

func logInfo(msg string, fields ...zap.Field) {
	if logger := observability.ServerLogger; logger != nil {
		logger.Info(msg, fields...)
	}
}
