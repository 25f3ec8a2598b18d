package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

// UserHandler manages user records
type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// CreateUser registers a person
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" || req.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Name and email are required")
	}

	user := models.User{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		UserType: models.UserTypeMember,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}

// GetUser returns one user with memberships preloaded
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	var user models.User
	if err := h.db.Preload("Memberships.Mahber").First(&user, uint(id)).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return services.ErrMemberNotFound
		}
		return err
	}

	return c.JSON(http.StatusOK, user)
}

// ListUsers returns all users
func (h *UserHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.db.Find(&users).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}
