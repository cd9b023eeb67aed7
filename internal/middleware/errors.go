package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type codedError interface {
	StatusCode() int
	ErrorCode() string
}

// ErrorHandler renders every failure as {"error": message, "code": name}.
// Errors that carry their own code keep it; plain fiber errors are named after
// their HTTP status.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := http.StatusInternalServerError
		code := ""

		var coded codedError
		var fe *fiber.Error
		switch {
		case errors.As(err, &coded):
			status = coded.StatusCode()
			code = coded.ErrorCode()
		case errors.As(err, &fe):
			status = fe.Code
		}
		if code == "" {
			code = strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
		}

		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", slog.String("path", c.Path()), slog.String("code", code), slog.Any("error", err))
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error(), "code": code})
	}
}
