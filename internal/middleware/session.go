package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// SessionTouch refreshes the authenticated user's session key on every
// request. Keys expire on their own after the TTL; the cleanup task only
// sweeps keys that lost their expiry. A redis failure never blocks the
// request.
func SessionTouch(client *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if client != nil {
			if userID, ok := UserIDFromLocals(c); ok {
				key := fmt.Sprintf("isms:session:%d", userID)
				_ = client.Set(c.UserContext(), key, time.Now().UTC().Unix(), ttl).Err()
			}
		}
		return c.Next()
	}
}
