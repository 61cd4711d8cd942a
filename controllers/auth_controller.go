package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/villageone/api/config"
	"github.com/villageone/api/middleware"
	"github.com/villageone/api/models"
	"github.com/villageone/api/store"
	"github.com/villageone/api/utils"
)

// AuthController handles registration, login and session endpoints.
type AuthController struct {
	repo store.Repository
}

// NewAuthController creates an AuthController.
func NewAuthController(repo store.Repository) *AuthController {
	return &AuthController{repo: repo}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username      string `json:"username" binding:"required,min=3,max=32"`
		Password      string `json:"password" binding:"required,min=6,max=72"`
		CaptchaID     string `json:"captcha_id"`
		CaptchaAnswer string `json:"captcha_answer"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40001, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-32 letters, digits or '_'")
		return
	}

	cfg := config.Get()
	if cfg.RegisterCaptchaEnabled && !utils.VerifyCaptcha(req.CaptchaID, req.CaptchaAnswer) {
		utils.Error(ctx, http.StatusBadRequest, 40004, "invalid captcha")
		return
	}

	reqCtx := ctx.Request.Context()
	ip := ctx.ClientIP()
	cooldown := time.Duration(cfg.RegisterCooldownSec) * time.Second
	if !utils.RegistrationCooldownTry(reqCtx, ip, cooldown) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many registration attempts, try again later")
		return
	}
	created := false
	// Only a successful registration spends the cooldown.
	defer func() {
		if !created {
			utils.RegistrationCooldownRelease(reqCtx, ip)
		}
	}()

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.repo.CreateUser(reqCtx, &user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.Logger.Error("create user failed", zap.String("username", user.Username), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}
	created = true

	a.issueToken(ctx, user, 50003)
}

// Captcha returns a fresh captcha id and its image as a data URI.
func (a *AuthController) Captcha(ctx *gin.Context) {
	id, b64, err := utils.GenerateCaptcha()
	if err != nil {
		utils.Logger.Error("generate captcha failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50006, "failed to generate captcha")
		return
	}
	utils.Success(ctx, gin.H{"captcha_id": id, "image": b64})
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, 40003, err)
		return
	}

	user, err := a.repo.GetUserByUsername(ctx.Request.Context(), strings.TrimSpace(req.Username))
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			utils.Logger.Error("login lookup failed", zap.Error(err))
		}
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	a.issueToken(ctx, user, 50004)
}

func (a *AuthController) issueToken(ctx *gin.Context, user models.User, code int) {
	token, err := utils.GenerateToken(user.ID, user.Username, utils.TokenTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, code, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{
		"token": token,
		"user":  userResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, ok := ctx.Get(middleware.ContextClaimsKey)
	if token == "" || !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40107, "invalid authorization header")
		return
	}

	expiresAt := time.Now().Add(utils.TokenTTL())
	if c, ok := claims.(*utils.Claims); ok && c.ExpiresAt != nil {
		expiresAt = c.ExpiresAt.Time
	}
	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the authenticated user.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := requireUser(ctx)
	if !ok {
		return
	}
	user, err := a.repo.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to load user")
		return
	}
	utils.Success(ctx, userResponse(user))
}

func validUsername(s string) bool {
	if l := len(s); l < 3 || l > 32 {
		return false
	}
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' {
			continue
		}
		return false
	}
	return true
}

// userResponse includes is_admin for authenticated responses.
func userResponse(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"is_admin":   config.Get().IsAdmin(user.Username),
	}
}
