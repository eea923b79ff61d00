package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go-hospitality/internal/auth"
	"go-hospitality/internal/middleware"
	"go-hospitality/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var input LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input")
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).Where("username = ?", strings.TrimSpace(input.Username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.handleError(c, err, "Failed to look up user")
		return
	}

	if !auth.CheckPassword(user.PasswordHash, input.Password) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.GenerateToken(user)
	if err != nil {
		h.handleError(c, err, "Failed to generate token")
		return
	}

	respond(c, http.StatusOK, gin.H{
		"token":     token,
		"role":      user.Role,
		"username":  user.Username,
		"tenant_id": user.TenantID,
	})
}

// RegisterRequest opens a new tenant with its first admin. Joining an
// existing tenant goes through CreateUser.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
	TenantID string `json:"tenant_id"`
}

// Register is only routed when ALLOW_REGISTRATION=true.
func (h *Handler) Register(c *gin.Context) {
	var input RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.TenantID != "" {
		fail(c, http.StatusForbidden, "Accounts for an existing tenant are created by its admin")
		return
	}

	h.createUser(c, models.User{
		TenantID: uuid.New(),
		Username: strings.TrimSpace(input.Username),
		Role:     models.RoleAdmin,
	}, input.Password)
}

type UserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin staff"`
}

// --- POST: /api/secure/users (admin adds an account to their own tenant) ---
func (h *Handler) CreateUser(c *gin.Context) {
	var input UserRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	role := input.Role
	if role == "" {
		role = models.RoleStaff
	}

	h.createUser(c, models.User{
		TenantID: middleware.TenantID(c),
		Username: strings.TrimSpace(input.Username),
		Role:     role,
	}, input.Password)
}

func (h *Handler) createUser(c *gin.Context, user models.User, password string) {
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		h.handleError(c, err, "Failed to hash password")
		return
	}
	user.PasswordHash = hashedPassword

	if err := h.db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		fail(c, http.StatusConflict, "User likely already exists")
		return
	}

	h.log.Info("user registered",
		zap.String("username", user.Username),
		zap.String("role", user.Role),
		zap.String("tenant_id", user.TenantID.String()),
	)
	respond(c, http.StatusCreated, user)
}
