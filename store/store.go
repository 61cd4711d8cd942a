// Package store persists posts, votes, comments and users behind a
// storage-agnostic repository. Two implementations exist: an in-process
// memory store and a GORM store for relational databases.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/villageone/api/models"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("unique constraint conflict")
)

// PostFilter narrows ListPosts. Zero values mean "any".
type PostFilter struct {
	AuthorID     string
	ForumSection models.ForumSection
	Status       models.PostStatus
	Search       string
	Page         int
	PageSize     int
}

// Offset returns the row offset for the filter's page.
func (f PostFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Repository is the full set of persistence operations. Implementations
// must be safe for concurrent use.
type Repository interface {
	// Transaction runs fn as one atomic unit. Writes made through the
	// Repository handed to fn are either all applied or, when fn returns
	// an error, none of them are.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, id string) (models.Post, error)
	// GetPostForUpdate reads a post and, where the backend supports it,
	// locks the row until the surrounding transaction ends.
	GetPostForUpdate(ctx context.Context, id string) (models.Post, error)
	// SavePost writes the editable and lifecycle columns of a post. It
	// never touches the vote counters.
	SavePost(ctx context.Context, post *models.Post) error
	// SetVoteCounts overwrites the cached counters on a post.
	SetVoteCounts(ctx context.Context, postID string, counts models.VoteCounts, at time.Time) error
	ListPosts(ctx context.Context, filter PostFilter) ([]models.Post, int64, error)

	GetVote(ctx context.Context, userID, postID string) (models.Vote, bool, error)
	CreateVote(ctx context.Context, vote *models.Vote) error
	UpdateVoteType(ctx context.Context, voteID string, voteType models.VoteType, at time.Time) error
	DeleteVote(ctx context.Context, voteID string) error
	ListVotesByPost(ctx context.Context, postID string) ([]models.Vote, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]models.Comment, error)

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}
