package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/villageone/api/models"
	"github.com/villageone/api/utils"
)

// ConfigController serves static forum configuration to clients.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetSections returns the forum-section registry.
func (c *ConfigController) GetSections(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"sections": models.SectionRegistry})
}
