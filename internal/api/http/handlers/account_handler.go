package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-auth/internal/api/dto"
	"github.com/spec-kit/marketplace-auth/internal/auth"
	"github.com/spec-kit/marketplace-auth/internal/domain"
	"github.com/spec-kit/marketplace-auth/internal/service"
	apperrors "github.com/spec-kit/marketplace-auth/pkg/util/errorutil"
)

// AccountHandler exposes signup, availability checks and the caller's profile.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler constructs handler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Signup handles POST /api/auth/signup.
func (h *AccountHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.accounts.Signup(c.UserContext(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Nickname: req.Nickname,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.NewUserResponse(user),
	})
}

// EmailExists handles GET /api/auth/email/exists?email=.
func (h *AccountHandler) EmailExists(c *fiber.Ctx) error {
	email := c.Query("email")
	if err := h.accounts.CheckEmail(c.UserContext(), email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AvailabilityResponse{Value: email, Available: true},
	})
}

// NicknameExists handles GET /api/auth/nickname/exists?nickname=.
func (h *AccountHandler) NicknameExists(c *fiber.Ctx) error {
	nickname := c.Query("nickname")
	if err := h.accounts.CheckNickname(c.UserContext(), nickname); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AvailabilityResponse{Value: nickname, Available: true},
	})
}

// Me handles GET /api/users/me.
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.ErrAuthenticationRequired
	}
	profile, err := h.accounts.Profile(c.UserContext(), principal.Email)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.NewProfileResponse(profile),
	})
}

// AdminPing handles GET /api/admin/ping.
func (h *AccountHandler) AdminPing(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	resp := fiber.Map{"pong": true}
	if principal != nil {
		resp["email"] = principal.Email
		resp["role"] = principal.Role
	}
	return c.JSON(fiber.Map{"data": resp})
}
