package main

import (
	"github.com/google/uuid"

	"github.com/aura-proctor/backend/internal/auth"
	"github.com/aura-proctor/backend/internal/realtime"
)

// wsValidator applies the same session scope to websocket observers as RequireSession
// does to the REST routes.
func wsValidator(jwtService *auth.JWTService) realtime.TokenValidator {
	return func(token string, sessionID uuid.UUID) (string, string, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		if !claims.CanObserve(sessionID) {
			return "", "", realtime.ErrSessionForbidden
		}
		return claims.UserID.String(), claims.Role, nil
	}
}
