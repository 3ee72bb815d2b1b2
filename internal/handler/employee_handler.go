package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/auth"
	"taskflow/internal/model"
)

// EmployeeRepository is the part of the directory the auth endpoints need.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *model.Employee) error
	FindByEmail(ctx context.Context, email string) (*model.Employee, error)
}

type EmployeeHandler struct {
	repo      EmployeeRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewEmployeeHandler(repo EmployeeRepository, jwtSecret string, tokenTTL time.Duration) *EmployeeHandler {
	return &EmployeeHandler{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required,min=2"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type EmployeeResponse struct {
	ID    int64      `json:"id"`
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
}

type AuthResponse struct {
	Token string           `json:"token"`
	User  EmployeeResponse `json:"user"`
}

// Register godoc
// @Summary      Register an employee
// @Tags         Employees
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "Employee"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Router       /register [post]
func (h *EmployeeHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	req.Email = strings.ToLower(req.Email)

	existing, err := h.repo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Employee with this email already exists"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Hash error"})
		return
	}

	// Роль admin назначается только напрямую в базе
	employee := &model.Employee{
		Email:        req.Email,
		Name:         req.Name,
		Role:         model.RoleEmployee,
		PasswordHash: string(hash),
	}

	if err := h.repo.Create(c.Request.Context(), employee); err != nil {
		if errors.Is(err, model.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Employee with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed"})
		return
	}

	h.respondAuth(c, http.StatusCreated, employee)
}

// Login godoc
// @Summary      Log in
// @Tags         Employees
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Credentials"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Router       /login [post]
func (h *EmployeeHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	employee, err := h.repo.FindByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	if employee == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.respondAuth(c, http.StatusOK, employee)
}

func (h *EmployeeHandler) respondAuth(c *gin.Context, status int, e *model.Employee) {
	token, err := auth.GenerateToken(h.jwtSecret, e.ID, e.Role, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token error"})
		return
	}

	c.JSON(status, AuthResponse{
		Token: token,
		User: EmployeeResponse{
			ID:    e.ID,
			Email: e.Email,
			Name:  e.Name,
			Role:  e.Role,
		},
	})
}
