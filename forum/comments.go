package forum

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
)

// Comments manages replies on posts.
type Comments struct {
	Store  store.Repository
	Clock  Clock
	IDGen  IDGenerator
	Logger *zap.Logger
}

// NewComments wires a Comments service with the default clock and ids.
func NewComments(repo store.Repository, logger *zap.Logger) *Comments {
	return &Comments{Store: repo, Logger: resolveLogger(logger)}
}

// Add attaches a comment to a post the caller can see.
func (c *Comments) Add(ctx context.Context, userID, postID, content string) (models.Comment, error) {
	if strings.TrimSpace(userID) == "" {
		return models.Comment{}, invalid("user is required")
	}
	if strings.TrimSpace(content) == "" {
		return models.Comment{}, invalid("content cannot be empty")
	}

	var comment models.Comment
	err := c.Store.Transaction(ctx, func(tx store.Repository) error {
		post, err := tx.GetPost(ctx, postID)
		if err != nil {
			return fromStore(err, "post")
		}
		if !post.IsPublished() && post.AuthorID != userID {
			return fmt.Errorf("%w: post", ErrNotFound)
		}
		now := c.Clock.now()
		comment = models.Comment{
			ID:        c.IDGen.next(),
			PostID:    post.ID,
			UserID:    userID,
			Content:   content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return fromStore(tx.CreateComment(ctx, &comment), "comment")
	})
	if err != nil {
		return models.Comment{}, err
	}
	resolveLogger(c.Logger).Info("comment added",
		zap.String("comment_id", comment.ID),
		zap.String("post_id", postID),
		zap.String("user_id", userID),
	)
	return comment, nil
}

// List returns a post's comments, oldest first.
func (c *Comments) List(ctx context.Context, postID string) ([]models.Comment, error) {
	comments, err := c.Store.ListComments(ctx, postID)
	if err != nil {
		return nil, fromStore(err, "comments")
	}
	return comments, nil
}

// Delete removes a comment. Only its author or an admin may do so.
func (c *Comments) Delete(ctx context.Context, commentID, userID string, isAdmin bool) (models.Comment, error) {
	var comment models.Comment
	err := c.Store.Transaction(ctx, func(tx store.Repository) error {
		var err error
		comment, err = tx.GetComment(ctx, commentID)
		if err != nil {
			return fromStore(err, "comment")
		}
		if comment.UserID != userID && !isAdmin {
			return fmt.Errorf("%w: you can only delete your own comment", ErrForbidden)
		}
		return fromStore(tx.DeleteComment(ctx, commentID), "comment")
	})
	if err != nil {
		return models.Comment{}, err
	}
	resolveLogger(c.Logger).Info("comment deleted",
		zap.String("comment_id", commentID),
		zap.String("user_id", userID),
		zap.Bool("admin", isAdmin),
	)
	return comment, nil
}
