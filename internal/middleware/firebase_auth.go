package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/byteboard/internal/models"
)

// Context keys set by FirebaseAuthMiddleware.
const (
	KeyFirebaseUID   = "firebaseUID"
	KeyFirebaseToken = "firebaseToken"
	KeyIdentity      = "identity"
)

// TokenVerifier verifies Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthMiddleware creates an Echo middleware to verify Firebase ID tokens.
// The token is read from the Authorization header, or from the "token" query
// parameter for websocket upgrades, which cannot carry custom headers.
func FirebaseAuthMiddleware(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			// Verify the ID token
			token, err := verifier.VerifyIDToken(c.Request().Context(), idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			c.Set(KeyFirebaseUID, token.UID)
			c.Set(KeyFirebaseToken, token)
			c.Set(KeyIdentity, identityFromToken(token))

			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if t := c.QueryParam("token"); t != "" {
			return t, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
	}
	return tokenParts[1], nil
}

func identityFromToken(token *auth.Token) models.Identity {
	id := models.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id
}

// UID returns the authenticated user's Firebase UID.
func UID(c echo.Context) string {
	uid, _ := c.Get(KeyFirebaseUID).(string)
	return uid
}

// Identity returns the authenticated user's identity.
func Identity(c echo.Context) models.Identity {
	id, _ := c.Get(KeyIdentity).(models.Identity)
	return id
}
