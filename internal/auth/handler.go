package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/peerpool/peerpool/internal/identity"
)

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	ids *identity.Service
	svc *Service
}

func NewHandler(ids *identity.Service, svc *Service) *Handler {
	return &Handler{ids: ids, svc: svc}
}

type loginRequest struct {
	Handle string `json:"handle"`
	Secret string `json:"secret"`
}

type loginResponse struct {
	AccountID    string `json:"account_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenVersion int    `json:"token_version"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	account, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Handle: req.Handle, Secret: req.Secret})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	pair, err := h.svc.Login(account)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		AccountID:    account.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenVersion: account.TokenVersion,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.RefreshToken == "" {
		return fiber.NewError(http.StatusBadRequest, "refresh_token is required")
	}
	if err := h.svc.Logout(c.UserContext(), req.RefreshToken); err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
