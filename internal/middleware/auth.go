package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/meetscribe/api/internal/auth"
	"github.com/meetscribe/api/pkg/response"
)

// APIClaims is an alias for auth.LegacyClaims for backwards compatibility
type APIClaims = auth.LegacyClaims

var errNoOrganization = errors.New("token carries no organization")

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware creates a new auth middleware with JWKS verification
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// NewAuthMiddlewareWithFallback creates auth middleware with both JWKS and legacy HMAC support
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// NewLegacyAuthMiddleware creates auth middleware using only HMAC signing (for testing/dev)
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates the JWT bearer token and stores the organization
// scope on the request context. Every API record is keyed by organization,
// so a missing orgId claim is a hard reject.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		tokenString := parts[1]

		// Try JWKS verification first
		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				if claims.OrganizationID == "" {
					return response.Unauthorized(c, "Token carries no organization")
				}
				c.Locals("orgId", claims.OrganizationID)
				c.Locals("claims", claims)
				return c.Next()
			}
			// If JWKS verification fails and no fallback, return error
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		// Fallback to legacy HMAC verification
		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			if claims.OrganizationID == "" {
				return response.Unauthorized(c, "Token carries no organization")
			}

			c.Locals("orgId", claims.OrganizationID)
			c.Locals("claims", claims)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

// ValidateToken verifies a raw token string and returns the organization it
// is scoped to. Used where the token arrives outside an Authorization
// header, such as the websocket upgrade query parameter.
func (m *AuthMiddleware) ValidateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("missing token")
	}

	if m.verifier != nil {
		claims, err := m.verifier.Validate(tokenString)
		if err == nil {
			if claims.OrganizationID == "" {
				return "", errNoOrganization
			}
			return claims.OrganizationID, nil
		}
		if m.jwtSecret == "" {
			return "", err
		}
	}

	if m.jwtSecret != "" {
		claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
		if err != nil {
			return "", err
		}
		if claims.OrganizationID == "" {
			return "", errNoOrganization
		}
		return claims.OrganizationID, nil
	}

	return "", errors.New("authentication not configured")
}

// GetOrganizationID extracts the authenticated organization from context.
func GetOrganizationID(c *fiber.Ctx) string {
	if orgID, ok := c.Locals("orgId").(string); ok {
		return orgID
	}
	return ""
}

// GenerateToken creates a new legacy JWT token (useful for testing)
func (m *AuthMiddleware) GenerateToken(orgID, subject string) (string, error) {
	if m.jwtSecret == "" {
		return "", jwt.ErrTokenNotValidYet
	}

	claims := APIClaims{
		OrganizationID: orgID,
		Subject:        subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "meetscribe-api",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.jwtSecret))
}
