package forum

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
)

// MaxTitleLength bounds post titles, in characters.
const MaxTitleLength = 255

// CreatePostInput carries the fields of a new post. An empty Status means draft.
type CreatePostInput struct {
	Title        string
	Content      string
	ForumSection models.ForumSection
	Status       models.PostStatus
}

// PostUpdate is a partial update; nil fields are left untouched.
type PostUpdate struct {
	Title        *string
	Content      *string
	ForumSection *models.ForumSection
	Status       *models.PostStatus
}

func (u PostUpdate) empty() bool {
	return u.Title == nil && u.Content == nil && u.ForumSection == nil && u.Status == nil
}

// PostLifecycle governs post creation, edits and the draft/published
// state machine. Only a post's author may change it.
type PostLifecycle struct {
	Store  store.Repository
	Clock  Clock
	IDGen  IDGenerator
	Logger *zap.Logger
}

// NewPostLifecycle wires a PostLifecycle with the default clock and ids.
func NewPostLifecycle(repo store.Repository, logger *zap.Logger) *PostLifecycle {
	return &PostLifecycle{Store: repo, Logger: resolveLogger(logger)}
}

// Create validates the input and stores a new post owned by authorID.
func (l *PostLifecycle) Create(ctx context.Context, authorID string, in CreatePostInput) (models.Post, error) {
	logger := resolveLogger(l.Logger)
	if strings.TrimSpace(authorID) == "" {
		return models.Post{}, invalid("author is required")
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return models.Post{}, err
	}
	content, err := validateContent(in.Content)
	if err != nil {
		return models.Post{}, err
	}
	if !in.ForumSection.Valid() {
		return models.Post{}, invalid("unknown forum section %q", in.ForumSection)
	}
	status := in.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	if !status.Valid() {
		return models.Post{}, invalid("unknown status %q", status)
	}

	now := l.Clock.now()
	post := models.Post{
		ID:           l.IDGen.next(),
		AuthorID:     authorID,
		Title:        title,
		Content:      content,
		ForumSection: in.ForumSection,
		Status:       models.PostStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyStatus(&post, status, now)

	if err := l.Store.CreatePost(ctx, &post); err != nil {
		return models.Post{}, fromStore(err, "post")
	}
	logger.Info("post created",
		zap.String("post_id", post.ID),
		zap.String("author_id", authorID),
		zap.String("forum_section", string(post.ForumSection)),
		zap.String("status", string(post.Status)),
	)
	return post, nil
}

// Get returns a post. Drafts are only visible to their author; anyone else
// gets ErrNotFound.
func (l *PostLifecycle) Get(ctx context.Context, postID, viewerID string) (models.Post, error) {
	post, err := l.Store.GetPost(ctx, postID)
	if err != nil {
		return models.Post{}, fromStore(err, "post")
	}
	if !post.IsPublished() && post.AuthorID != viewerID {
		return models.Post{}, fmt.Errorf("%w: post", ErrNotFound)
	}
	return post, nil
}

// List returns one page of posts matching filter plus the total match count.
func (l *PostLifecycle) List(ctx context.Context, filter store.PostFilter) ([]models.Post, int64, error) {
	if filter.ForumSection != "" && !filter.ForumSection.Valid() {
		return nil, 0, invalid("unknown forum section %q", filter.ForumSection)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, invalid("unknown status %q", filter.Status)
	}
	posts, total, err := l.Store.ListPosts(ctx, filter)
	if err != nil {
		return nil, 0, fromStore(err, "posts")
	}
	return posts, total, nil
}

// Publish moves a post to published and stamps PublishedAt. Publishing an
// already published post changes nothing.
func (l *PostLifecycle) Publish(ctx context.Context, postID, userID string) (models.Post, error) {
	return l.transition(ctx, postID, userID, models.PostStatusPublished)
}

// Revert moves a post back to draft and clears PublishedAt.
func (l *PostLifecycle) Revert(ctx context.Context, postID, userID string) (models.Post, error) {
	return l.transition(ctx, postID, userID, models.PostStatusDraft)
}

func (l *PostLifecycle) transition(ctx context.Context, postID, userID string, target models.PostStatus) (models.Post, error) {
	logger := resolveLogger(l.Logger)
	var result models.Post
	err := l.Store.Transaction(ctx, func(tx store.Repository) error {
		post, err := l.loadOwned(ctx, tx, postID, userID)
		if err != nil {
			return err
		}
		now := l.Clock.now()
		if !applyStatus(&post, target, now) {
			result = post
			return nil
		}
		post.UpdatedAt = now
		if err := tx.SavePost(ctx, &post); err != nil {
			return fromStore(err, "post")
		}
		result = post
		return nil
	})
	if err != nil {
		logger.Warn("post transition rejected",
			zap.String("post_id", postID),
			zap.String("user_id", userID),
			zap.String("target", string(target)),
			zap.Error(err),
		)
		return models.Post{}, err
	}
	logger.Info("post transitioned",
		zap.String("post_id", postID),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

// Update merges the provided fields into the post. A status change follows
// the same rules as Publish and Revert, so every entry into published
// stamps PublishedAt. Vote counters are never written here.
func (l *PostLifecycle) Update(ctx context.Context, postID, userID string, upd PostUpdate) (models.Post, error) {
	logger := resolveLogger(l.Logger)
	if upd.empty() {
		return models.Post{}, invalid("no fields to update")
	}

	var title, content string
	var err error
	if upd.Title != nil {
		if title, err = validateTitle(*upd.Title); err != nil {
			return models.Post{}, err
		}
	}
	if upd.Content != nil {
		if content, err = validateContent(*upd.Content); err != nil {
			return models.Post{}, err
		}
	}
	if upd.ForumSection != nil && !upd.ForumSection.Valid() {
		return models.Post{}, invalid("unknown forum section %q", *upd.ForumSection)
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return models.Post{}, invalid("unknown status %q", *upd.Status)
	}

	var result models.Post
	err = l.Store.Transaction(ctx, func(tx store.Repository) error {
		post, err := l.loadOwned(ctx, tx, postID, userID)
		if err != nil {
			return err
		}
		now := l.Clock.now()
		if upd.Title != nil {
			post.Title = title
		}
		if upd.Content != nil {
			post.Content = content
		}
		if upd.ForumSection != nil {
			post.ForumSection = *upd.ForumSection
		}
		if upd.Status != nil {
			applyStatus(&post, *upd.Status, now)
		}
		post.UpdatedAt = now
		if err := tx.SavePost(ctx, &post); err != nil {
			return fromStore(err, "post")
		}
		result = post
		return nil
	})
	if err != nil {
		logger.Warn("post update rejected",
			zap.String("post_id", postID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return models.Post{}, err
	}
	logger.Info("post updated", zap.String("post_id", postID), zap.String("status", string(result.Status)))
	return result, nil
}

func (l *PostLifecycle) loadOwned(ctx context.Context, tx store.Repository, postID, userID string) (models.Post, error) {
	post, err := tx.GetPostForUpdate(ctx, postID)
	if err != nil {
		return models.Post{}, fromStore(err, "post")
	}
	if post.AuthorID != userID {
		return models.Post{}, fmt.Errorf("%w: you can only change your own posts", ErrForbidden)
	}
	return post, nil
}

// applyStatus moves post to target and keeps PublishedAt in step with it.
// It reports whether the status changed.
func applyStatus(post *models.Post, target models.PostStatus, now time.Time) bool {
	if post.Status == target {
		return false
	}
	post.Status = target
	if target == models.PostStatusPublished {
		stamp := now
		post.PublishedAt = &stamp
	} else {
		post.PublishedAt = nil
	}
	return true
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", invalid("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", invalid("title exceeds %d characters", MaxTitleLength)
	}
	return title, nil
}

func validateContent(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", invalid("content is required")
	}
	return raw, nil
}
