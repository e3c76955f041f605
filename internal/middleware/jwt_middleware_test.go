package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"euphony/internal/logging"
	"euphony/internal/middleware"

	"github.com/dgrijalva/jwt-go"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test_jwt_secret"

func sign(t *testing.T, key string, roles ...string) string {
	t.Helper()
	rs := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		rs = append(rs, r)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":                "user-1",
		"preferred_username": "jdoe",
		"exp":                time.Now().Add(time.Hour).Unix(),
		"resource_access": map[string]interface{}{
			"euphony-client": map[string]interface{}{"roles": rs},
		},
	})
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	verifier, err := middleware.NewVerifier(secret, "", "euphony-client", logging.Component(logging.Discard(), "auth"))
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/me", middleware.AuthRequired(verifier), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":  c.Locals(middleware.LocalUserID),
			"username": c.Locals(middleware.LocalUsername),
		})
	})
	app.Get("/admin", middleware.AuthRequired(verifier), middleware.RequireRole("admin_client_role"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func get(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAuthRequired(t *testing.T) {
	app := setupApp(t)

	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/me", "garbage"))
	assert.Equal(t, http.StatusUnauthorized, get(t, app, "/me", sign(t, "another_secret")))
	assert.Equal(t, http.StatusOK, get(t, app, "/me", sign(t, secret)))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	app := setupApp(t)

	assert.Equal(t, http.StatusForbidden, get(t, app, "/admin", sign(t, secret, "default_role")))
	assert.Equal(t, http.StatusOK, get(t, app, "/admin", sign(t, secret, "default_role", "admin_client_role")))
}

func TestNewVerifier_RequiresKey(t *testing.T) {
	_, err := middleware.NewVerifier("", "", "euphony-client", logging.Component(logging.Discard(), "auth"))
	assert.Error(t, err)

	_, err = middleware.NewVerifier("", "not a pem", "euphony-client", logging.Component(logging.Discard(), "auth"))
	assert.Error(t, err)
}
