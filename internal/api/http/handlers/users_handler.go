package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/reimbursement-service/internal/api/dto"
	"github.com/spec-kit/reimbursement-service/internal/auth"
	"github.com/spec-kit/reimbursement-service/internal/service"
	apperrors "github.com/spec-kit/reimbursement-service/pkg/util"
)

// UsersHandler exposes registration and login endpoints.
type UsersHandler struct {
	credentials *service.CredentialService
	tokens      *auth.TokenManager
}

// NewUsersHandler constructs handler.
func NewUsersHandler(credentials *service.CredentialService, tokens *auth.TokenManager) *UsersHandler {
	return &UsersHandler{credentials: credentials, tokens: tokens}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.credentials.Register(c.UserContext(), service.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	token, exp, err := h.tokens.GenerateToken(user)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return success(c, http.StatusCreated, fiber.Map{
		"user": dto.NewUserProfile(user),
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// Login handles POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.credentials.Login(c.UserContext(), service.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	token, exp, err := h.tokens.GenerateToken(user)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	return success(c, http.StatusOK, fiber.Map{
		"user": dto.NewUserProfile(user),
		"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// success writes the tagged result envelope shared by all endpoints.
func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
