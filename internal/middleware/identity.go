package middleware

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// userID digs a user identifier out of raw JWT claims for requests
// that did not pass through JWTAuth.  Unauthenticated callers are
// bucketed together as "guest" so they share one rate-limit key.
func userID(c echo.Context) string {
	tok, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return "guest"
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "guest"
	}
	if v, ok := claims["sub"].(string); ok && v != "" {
		return v
	}
	if v, ok := claims["user_id"].(string); ok && v != "" {
		return v
	}
	return "guest"
}
