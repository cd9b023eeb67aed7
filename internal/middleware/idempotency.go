package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	idempotencyTimeout   = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// Idempotency enforces idempotent semantics across unsafe HTTP methods by
// persisting responses in Redis keyed by the provided Idempotency-Key header.
// Keys are scoped to the authenticated caller so two accounts can never replay
// each other's pool operations.
//
// A failed request releases its key so the caller may retry, unless the
// failure happened after the ledger committed (a 502 carried by an error
// exposing StatusCode). Those responses are stored like successes.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		cacheKey := idempotencyPrefix + scope(c) + ":" + key

		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyTimeout)
		defer cancel()

		cached, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			return replay(c, cached, key, logger)
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			if !committedFailure(err) {
				release(cache, cacheKey)
				return err
			}
			// Render now so the stored body matches what the caller sees.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				release(cache, cacheKey)
				return herr
			}
		}

		if err := persist(cache, cacheKey, c, ttl); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			release(cache, cacheKey)
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency persistence failure")
		}
		return nil
	}
}

func replay(c *fiber.Ctx, cached, key string, logger *slog.Logger) error {
	if cached == inProgressMarker {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}

	for header, value := range stored.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	return c.Status(stored.Status).SendString(stored.Body)
}

func persist(cache *redis.Client, cacheKey string, c *fiber.Ctx, ttl time.Duration) error {
	stored := storedResponse{
		Status:  c.Response().StatusCode(),
		Body:    string(c.Response().Body()),
		Headers: map[string]string{},
	}
	c.Response().Header.VisitAll(func(k, v []byte) {
		stored.Headers[string(k)] = string(v)
	})

	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	return cache.Set(ctx, cacheKey, payload, ttl).Err()
}

// release is best effort; the reservation expires with its TTL anyway.
func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}

func committedFailure(err error) bool {
	var coded interface{ StatusCode() int }
	if !errors.As(err, &coded) {
		return false
	}
	return coded.StatusCode() == fiber.StatusBadGateway
}

func scope(c *fiber.Ctx) string {
	if id := AccountID(c); id != "" {
		return id
	}
	return "anonymous"
}
