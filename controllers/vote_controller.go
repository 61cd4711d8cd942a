package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/villageone/api/forum"
	"github.com/villageone/api/models"
	"github.com/villageone/api/utils"
)

// VoteController exposes the vote ledger.
type VoteController struct {
	ledger *forum.VoteLedger
}

// NewVoteController creates a VoteController.
func NewVoteController(ledger *forum.VoteLedger) *VoteController {
	return &VoteController{ledger: ledger}
}

type castVoteRequest struct {
	PostID   string `json:"post_id" binding:"required"`
	VoteType string `json:"vote_type" binding:"required,vote_type"`
}

// CastVote casts, switches or withdraws the caller's vote on a post.
func (v *VoteController) CastVote(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	var req castVoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40030, err)
		return
	}

	res, err := v.ledger.CastVote(ctx.Request.Context(), userID, req.PostID, models.VoteType(req.VoteType))
	if err != nil {
		fail(ctx, err, 50030, "failed to cast vote")
		return
	}
	utils.InvalidatePost(ctx.Request.Context(), req.PostID)
	utils.Success(ctx, gin.H{
		"success":      true,
		"current_vote": res.CurrentVote,
		"upvotes":      res.Upvotes,
		"downvotes":    res.Downvotes,
	})
}

// GetUserVote returns the caller's vote type on a post, or null.
func (v *VoteController) GetUserVote(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	vt, err := v.ledger.GetUserVote(ctx.Request.Context(), userID, ctx.Param("postId"))
	if err != nil {
		fail(ctx, err, 50031, "failed to load vote")
		return
	}
	utils.Success(ctx, gin.H{"vote_type": vt})
}

// GetVoteCounts counts a post's votes.
func (v *VoteController) GetVoteCounts(ctx *gin.Context) {
	counts, err := v.ledger.GetVoteCounts(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		fail(ctx, err, 50032, "failed to count votes")
		return
	}
	utils.Success(ctx, counts)
}

// Recount rewrites a post's cached counters from its votes. Admins only.
func (v *VoteController) Recount(ctx *gin.Context) {
	if _, ok := requireUser(ctx); !ok {
		return
	}
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40330, "admin only")
		return
	}
	counts, err := v.ledger.Recount(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		fail(ctx, err, 50033, "failed to recount votes")
		return
	}
	utils.InvalidatePost(ctx.Request.Context(), ctx.Param("id"))
	utils.Success(ctx, counts)
}
