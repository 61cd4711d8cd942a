package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/villageone/api/config"
	"github.com/villageone/api/forum"
	"github.com/villageone/api/middleware"
	"github.com/villageone/api/utils"
)

// fail translates a forum error into the response envelope. Unknown errors
// are logged and answered with internalCode.
func fail(ctx *gin.Context, err error, internalCode int, internalMsg string) {
	kinds := []struct {
		sentinel error
		status   int
		code     int
	}{
		{forum.ErrInvalidArgument, http.StatusBadRequest, 40010},
		{forum.ErrForbidden, http.StatusForbidden, 40301},
		{forum.ErrNotFound, http.StatusNotFound, 40401},
		{forum.ErrConflict, http.StatusConflict, 40901},
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			msg := strings.TrimPrefix(err.Error(), k.sentinel.Error()+": ")
			utils.Error(ctx, k.status, k.code, msg)
			return
		}
	}
	utils.Logger.Error(internalMsg,
		zap.String("path", ctx.FullPath()),
		zap.Error(err),
	)
	utils.Error(ctx, http.StatusInternalServerError, internalCode, internalMsg)
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

// requireUser answers 401 when the request carries no identity.
func requireUser(ctx *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return "", false
	}
	return uid, true
}

func isAdmin(ctx *gin.Context) bool {
	return config.Get().IsAdmin(middleware.Username(ctx))
}
