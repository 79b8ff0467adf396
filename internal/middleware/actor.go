package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/isms-go-api/internal/audit"
)

// ActorContext binds the request's actor identity into the user context, so
// every persistence call downstream attributes its audit records to the
// authenticated user. Must run after JWTProtected; unauthenticated requests
// still carry client IP and user agent and record as system changes.
func ActorContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := audit.Actor{
			ClientIP:  c.IP(),
			UserAgent: c.Get("User-Agent"),
		}

		if userID, ok := UserIDFromLocals(c); ok {
			id := userID
			actor.ID = &id
		}

		c.SetUserContext(audit.WithActor(c.UserContext(), actor))
		return c.Next()
	}
}
