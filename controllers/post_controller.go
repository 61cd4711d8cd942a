package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/villageone/api/forum"
	"github.com/villageone/api/middleware"
	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
	"github.com/villageone/api/utils"
)

// PostController exposes the post lifecycle and comments over HTTP.
type PostController struct {
	lifecycle *forum.PostLifecycle
	comments  *forum.Comments
}

// NewPostController creates a new PostController instance.
func NewPostController(lifecycle *forum.PostLifecycle, comments *forum.Comments) *PostController {
	return &PostController{lifecycle: lifecycle, comments: comments}
}

type createPostRequest struct {
	Title        string `json:"title" binding:"required,max=255"`
	Content      string `json:"content" binding:"required"`
	ForumSection string `json:"forum_section" binding:"required,forum_section"`
	Status       string `json:"status" binding:"omitempty,post_status"`
}

// CreatePost allows authenticated users to create new posts, as draft unless
// status says otherwise.
func (p *PostController) CreatePost(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req createPostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40020, err)
		return
	}

	post, err := p.lifecycle.Create(ctx.Request.Context(), userID, forum.CreatePostInput{
		Title:        utils.SanitizePlain(req.Title),
		Content:      utils.Sanitize(req.Content),
		ForumSection: models.ForumSection(req.ForumSection),
		Status:       models.PostStatus(req.Status),
	})
	if err != nil {
		fail(ctx, err, 50020, "failed to create post")
		return
	}

	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CachePostListPrefix)
	utils.Success(ctx, gin.H{"post": post})
}

// ListPosts returns paginated published posts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))
	section := strings.TrimSpace(ctx.Query("section"))

	// Only cache unsearched lists to avoid cache key explosion
	cacheKey := ""
	if search == "" {
		cacheKey = fmt.Sprintf("%ssection=%s:page=%d:size=%d", utils.CachePostListPrefix, section, page, pageSize)
		if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json", b)
			return
		}
	}

	posts, total, err := p.lifecycle.List(ctx.Request.Context(), store.PostFilter{
		ForumSection: models.ForumSection(section),
		Status:       models.PostStatusPublished,
		Search:       search,
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		fail(ctx, err, 50022, "failed to list posts")
		return
	}

	payload := gin.H{
		"items":      posts,
		"pagination": pagination(page, pageSize, total),
	}
	if cacheKey != "" {
		utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 0)
	}
	utils.Success(ctx, payload)
}

// GetPost returns a single post with its comments. Drafts are only visible
// to their author.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID := ctx.Param("id")
	viewerID, _ := middleware.UserID(ctx)

	cacheKey := utils.CachePostDetailPrefix + postID
	if b, ok := utils.CacheGetBytes(ctx.Request.Context(), cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	post, err := p.lifecycle.Get(ctx.Request.Context(), postID, viewerID)
	if err != nil {
		fail(ctx, err, 50023, "failed to load post")
		return
	}
	comments, err := p.comments.List(ctx.Request.Context(), post.ID)
	if err != nil {
		fail(ctx, err, 50024, "failed to load comments")
		return
	}

	payload := gin.H{"post": post, "comments": comments}
	// Drafts are per-viewer, so only published posts are shared through the cache.
	if post.IsPublished() {
		utils.CacheSetJSON(ctx.Request.Context(), cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, 0)
	}
	utils.Success(ctx, payload)
}

// ListMyPosts returns the caller's posts, drafts included.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	posts, total, err := p.lifecycle.List(ctx.Request.Context(), store.PostFilter{
		AuthorID: userID,
		Status:   models.PostStatus(strings.TrimSpace(ctx.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		fail(ctx, err, 50027, "failed to list user posts")
		return
	}
	utils.Success(ctx, gin.H{
		"items":      posts,
		"pagination": pagination(page, pageSize, total),
	})
}

type updatePostRequest struct {
	Title        *string `json:"title" binding:"omitempty,max=255"`
	Content      *string `json:"content"`
	ForumSection *string `json:"forum_section" binding:"omitempty,forum_section"`
	Status       *string `json:"status" binding:"omitempty,post_status"`
}

// UpdatePost merges the provided fields into a post the caller owns.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req updatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40024, err)
		return
	}

	var upd forum.PostUpdate
	if req.Title != nil {
		title := utils.SanitizePlain(*req.Title)
		upd.Title = &title
	}
	if req.Content != nil {
		content := utils.Sanitize(*req.Content)
		upd.Content = &content
	}
	if req.ForumSection != nil {
		section := models.ForumSection(*req.ForumSection)
		upd.ForumSection = &section
	}
	if req.Status != nil {
		status := models.PostStatus(*req.Status)
		upd.Status = &status
	}

	post, err := p.lifecycle.Update(ctx.Request.Context(), ctx.Param("id"), userID, upd)
	if err != nil {
		fail(ctx, err, 50026, "failed to update post")
		return
	}
	utils.InvalidatePost(ctx.Request.Context(), post.ID)
	utils.Success(ctx, gin.H{"post": post})
}

// PublishPost makes a post the caller owns publicly visible.
func (p *PostController) PublishPost(ctx *gin.Context) {
	p.transition(ctx, p.lifecycle.Publish, 50028, "failed to publish post")
}

// RevertPost moves a post the caller owns back to draft.
func (p *PostController) RevertPost(ctx *gin.Context) {
	p.transition(ctx, p.lifecycle.Revert, 50029, "failed to revert post")
}

type transitionFunc func(ctx context.Context, postID, userID string) (models.Post, error)

func (p *PostController) transition(ctx *gin.Context, apply transitionFunc, code int, msg string) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	post, err := apply(ctx.Request.Context(), ctx.Param("id"), userID)
	if err != nil {
		fail(ctx, err, code, msg)
		return
	}
	utils.InvalidatePost(ctx.Request.Context(), post.ID)
	utils.Success(ctx, gin.H{"post": post})
}

// CreateComment adds a comment to a post the caller can see.
func (p *PostController) CreateComment(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40022, err)
		return
	}

	comment, err := p.comments.Add(ctx.Request.Context(), userID, ctx.Param("id"), utils.Sanitize(req.Content))
	if err != nil {
		fail(ctx, err, 50025, "failed to create comment")
		return
	}
	utils.InvalidatePost(ctx.Request.Context(), comment.PostID)
	utils.Success(ctx, gin.H{"comment": comment})
}

// DeleteComment removes a comment. Authors and admins only.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	commentID := strings.TrimSpace(ctx.Param("commentId"))
	if commentID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40070, "missing comment id")
		return
	}

	comment, err := p.comments.Delete(ctx.Request.Context(), commentID, userID, isAdmin(ctx))
	if err != nil {
		fail(ctx, err, 50071, "failed to delete comment")
		return
	}
	utils.InvalidatePost(ctx.Request.Context(), comment.PostID)
	utils.Success(ctx, gin.H{"message": "deleted"})
}
