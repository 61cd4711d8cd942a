package controllers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/villageone/api/forum"
	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
	"github.com/villageone/api/utils"
)

// StatsController provides forum statistics.
type StatsController struct {
	lifecycle *forum.PostLifecycle
	repo      store.Repository
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(lifecycle *forum.PostLifecycle, repo store.Repository) *StatsController {
	return &StatsController{lifecycle: lifecycle, repo: repo}
}

// GetStats returns published post counts per section and the user count.
// A failing count falls back to 0 instead of failing the whole endpoint.
func (s *StatsController) GetStats(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	perSection := make(map[models.ForumSection]int64, len(models.ForumSections))
	var postCount int64
	for _, section := range models.ForumSections {
		_, total, err := s.lifecycle.List(reqCtx, store.PostFilter{
			ForumSection: section,
			Status:       models.PostStatusPublished,
			PageSize:     1,
		})
		if err != nil {
			utils.Logger.Warn("stats: count posts failed", zap.String("section", string(section)), zap.Error(err))
			total = 0
		}
		perSection[section] = total
		postCount += total
	}

	userCount, err := s.repo.CountUsers(reqCtx)
	if err != nil {
		utils.Logger.Warn("stats: count users failed", zap.Error(err))
		userCount = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":    userCount,
		"post_count":    postCount,
		"section_count": perSection,
	})
}
