package serverutils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userIdLocal = "user_id"

// NewJwtMiddleware validates the bearer token and stores the user_id claim in Locals.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		// Overlapping route groups may stack this middleware.
		if _, ok := ctx.Locals(userIdLocal).(string); ok {
			return ctx.Next()
		}

		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		userId, err := ParseUserToken(authHeader[7:], secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
		}

		ctx.Locals(userIdLocal, userId.String())
		return ctx.Next()
	}
}

// ParseUserToken verifies an HMAC-signed token and returns its user_id claim.
// The websocket handshake reuses it because browsers cannot set headers there.
func ParseUserToken(tokenStr, secret string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, NewAppError(fiber.StatusUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, NewAppError(fiber.StatusUnauthorized, "Invalid claims")
	}

	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, NewAppError(fiber.StatusUnauthorized, "Token missing user_id")
	}

	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, NewAppError(fiber.StatusUnauthorized, "Invalid user ID format in token")
	}
	return userId, nil
}

// UserId reads the authenticated user id set by the JWT middleware.
func UserId(ctx *fiber.Ctx) (uuid.UUID, error) {
	userIdStr, ok := ctx.Locals(userIdLocal).(string)
	if !ok {
		return uuid.Nil, NewAppError(fiber.StatusUnauthorized, "Unauthorized")
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, NewAppError(fiber.StatusUnauthorized, "Invalid user ID")
	}
	return userId, nil
}

// ParamUUID parses a uuid route parameter or returns a 400.
func ParamUUID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, NewAppError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
