package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a discussion entry on a service request.
type Comment struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:text;not null;index:idx_comments_request" json:"request_id"`
	AuthorID  uuid.UUID `gorm:"type:text;not null;index:idx_comments_author" json:"author_id"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `gorm:"index:idx_comments_created_at" json:"created_at"`
}

// TableName returns the database table name for Comment.
func (Comment) TableName() string {
	return "comments"
}

// Upvote is one user's endorsement of a service request. One row per
// (request, voter) pair.
type Upvote struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	RequestID uuid.UUID `gorm:"type:text;not null;index:idx_upvotes_request,unique" json:"request_id"`
	VoterID   uuid.UUID `gorm:"type:text;not null;index:idx_upvotes_request,unique;index:idx_upvotes_voter" json:"voter_id"`
	CreatedAt time.Time `gorm:"index:idx_upvotes_created_at" json:"created_at"`
}

// TableName returns the database table name for Upvote.
func (Upvote) TableName() string {
	return "upvotes"
}
