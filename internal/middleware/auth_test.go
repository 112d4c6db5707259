package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldops/backend/internal/models"
	"github.com/fieldops/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newAuthRouter(captured *services.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/probe", func(c *gin.Context) {
		if actor, ok := Actor(c); ok {
			*captured = actor
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantActor  *services.Actor
	}{
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic abc123",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "garbage token",
			authHeader: "Bearer not.a.jwt",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong signing secret",
			authHeader: "Bearer " + mintToken(t, "other-secret", jwt.MapClaims{
				"user_id": float64(7), "role": "ADMIN", "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			authHeader: "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
				"user_id": float64(7), "role": "ADMIN",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "valid token",
			authHeader: "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
				"user_id": float64(7), "role": "ADMIN", "email": "a@b.c", "exp": exp,
			}),
			wantStatus: http.StatusOK,
			wantActor:  &services.Actor{ID: 7, Role: models.RoleAdmin},
		},
		{
			name: "user_id claim is a string",
			authHeader: "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
				"user_id": "7", "role": "ADMIN", "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "user_id claim missing",
			authHeader: "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
				"role": "ADMIN", "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "role claim missing",
			authHeader: "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
				"user_id": float64(7), "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "zero user id",
			authHeader: "Bearer " + mintToken(t, testSecret, jwt.MapClaims{
				"user_id": float64(0), "role": "ADMIN", "exp": exp,
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured services.Actor
			r := newAuthRouter(&captured)

			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			// A malformed claim must be a clean 401, never a panic
			require.NotPanics(t, func() { r.ServeHTTP(w, req) })

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantActor != nil {
				assert.Equal(t, *tt.wantActor, captured)
			}
		})
	}
}

func TestActor_AbsentWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	_, ok := Actor(c)
	assert.False(t, ok)
}
