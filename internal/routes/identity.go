package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/peerpool/peerpool/internal/identity"
)

// RegisterIdentityRoutes wires account onboarding.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Post("/accounts", h.Register)
}
