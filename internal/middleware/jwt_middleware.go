package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Locals keys set by AuthRequired.
const (
	LocalUserID   = "user_id"
	LocalUsername = "username"
	LocalRoles    = "roles"
)

// Verifier checks bearer tokens issued by the identity provider.
type Verifier struct {
	clientID string
	keyFunc  jwt.Keyfunc
	logger   *logrus.Entry
}

// NewVerifier accepts RS256 tokens when publicKeyPEM is set and HS256 tokens
// signed with secret otherwise. Roles are read from the clientID entry of
// resource_access.
func NewVerifier(secret, publicKeyPEM, clientID string, logger *logrus.Entry) (*Verifier, error) {
	v := &Verifier{clientID: clientID, logger: logger}

	if publicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("failed to parse JWT public key: %w", err)
		}
		v.keyFunc = func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}
		return v, nil
	}

	if secret == "" {
		return nil, errors.New("a JWT secret or public key is required")
	}
	v.keyFunc = func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
	return v, nil
}

// Claims is the subset of the token the service uses.
type Claims struct {
	Subject  string
	Username string
	Roles    []string
}

// Verify parses and validates tokenString.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, v.keyFunc)
	if err != nil {
		return nil, err
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims := &Claims{}
	claims.Subject, _ = mapClaims["sub"].(string)
	claims.Username, _ = mapClaims["preferred_username"].(string)
	claims.Roles = clientRoles(mapClaims, v.clientID)
	return claims, nil
}

func clientRoles(claims jwt.MapClaims, clientID string) []string {
	access, ok := claims["resource_access"].(map[string]interface{})
	if !ok {
		return nil
	}
	client, ok := access[clientID].(map[string]interface{})
	if !ok {
		return nil
	}
	raw, ok := client["roles"].([]interface{})
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(verifier *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := verifier.Verify(parts[1])
		if err != nil {
			verifier.logger.WithError(err).Debug("JWT validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalUsername, claims.Username)
		c.Locals(LocalRoles, claims.Roles)
		return c.Next()
	}
}

// RequireRole rejects requests whose token lacks role. It must run after
// AuthRequired.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalRoles).([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": fmt.Sprintf("role '%s' is required", role),
		})
	}
}
