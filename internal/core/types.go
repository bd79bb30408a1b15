package core

import "time"

// Collection names the ordered document collections.
type Collection string

const (
	CollectionPosts    Collection = "posts"
	CollectionComments Collection = "comments"
)

// MediaType describes an attached media reference.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Item is one entry of an ordered collection as returned by a page query.
type Item struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Post-only fields.
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
	Likes          int        `json:"likes,omitempty"`
	CommentsCount  int        `json:"comments_count,omitempty"`
	MediaURL       string     `json:"media_url,omitempty"`
	MediaType      MediaType  `json:"media_type,omitempty"`
	MediaThumbnail string     `json:"media_thumbnail,omitempty"`

	// Comment-only field.
	PostID string `json:"post_id,omitempty"`
}

// NewPost is the payload of a post creation. The author name is taken
// from the author's profile.
type NewPost struct {
	UserID         string
	Content        string
	MediaURL       string
	MediaType      MediaType
	MediaThumbnail string
}

// NewComment is the payload of a comment creation.
type NewComment struct {
	PostID  string
	UserID  string
	Content string
}

// UserProfile is the stored profile record, including the viewer's block list.
type UserProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	BlockedUsers []string  `json:"blocked_users"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReportReason enumerates moderation report reasons.
type ReportReason string

const (
	ReportSpam                 ReportReason = "spam"
	ReportHarassment           ReportReason = "harassment"
	ReportInappropriateContent ReportReason = "inappropriate_content"
	ReportHateSpeech           ReportReason = "hate_speech"
	ReportMisinformation       ReportReason = "misinformation"
	ReportOther                ReportReason = "other"
)

// ReportReasonLabels maps reasons to display labels.
var ReportReasonLabels = map[ReportReason]string{
	ReportSpam:                 "Spam",
	ReportHarassment:           "Harassment or Bullying",
	ReportInappropriateContent: "Inappropriate Content",
	ReportHateSpeech:           "Hate Speech",
	ReportMisinformation:       "False Information",
	ReportOther:                "Other",
}

// ReportTarget identifies what kind of object a report points at.
type ReportTarget string

const (
	ReportTargetPost    ReportTarget = "post"
	ReportTargetComment ReportTarget = "comment"
	ReportTargetUser    ReportTarget = "user"
)

// ReportStatus tracks moderation progress.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusReviewed ReportStatus = "reviewed"
	ReportStatusResolved ReportStatus = "resolved"
)

// Report is a moderation report filed by a user.
type Report struct {
	ID               string       `json:"id"`
	ReporterUserID   string       `json:"reporter_user_id"`
	ReporterUsername string       `json:"reporter_username"`
	TargetType       ReportTarget `json:"target_type"`
	TargetID         string       `json:"target_id"`
	TargetUserID     string       `json:"target_user_id"`
	TargetUsername   string       `json:"target_username"`
	Reason           ReportReason `json:"reason"`
	Description      string       `json:"description,omitempty"`
	Status           ReportStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}
