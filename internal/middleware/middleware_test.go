package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yare-hub/classroom/internal/auth"
	"github.com/yare-hub/classroom/internal/models"
)

func newProtectedRouter(svc *auth.JWTService, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(svc))
	r.GET("/me", RequireRole(roles...), func(c *gin.Context) {
		id, _ := UserID(c)
		role, _ := Role(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role, "email": UserEmail(c)})
	})
	return r
}

func TestJWTAndRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	parent, err := svc.Generate(uuid.New(), "p@example.com", models.RoleParent)
	require.NoError(t, err)
	admin, err := svc.Generate(uuid.New(), "a@example.com", models.RoleAdmin)
	require.NoError(t, err)
	foreign, err := auth.NewJWTService("other", 1).Generate(uuid.New(), "x@example.com", models.RoleAdmin)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{name: "no header", header: "", want: http.StatusUnauthorized, body: "missing authorization header"},
		{name: "not bearer", header: "Basic abc", want: http.StatusUnauthorized, body: "invalid authorization header"},
		{name: "wrong key", header: "Bearer " + foreign, want: http.StatusUnauthorized, body: "invalid token"},
		{name: "wrong role", header: "Bearer " + parent, want: http.StatusForbidden, body: "insufficient permissions"},
		{name: "allowed", header: "bearer " + admin, want: http.StatusOK, body: `"email":"a@example.com"`},
	}
	r := newProtectedRouter(svc, models.RoleAdmin, models.RoleTeacher)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name       string
		allowed    string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantCode   int
	}{
		{name: "wildcard", allowed: "*", origin: "https://x.test", method: http.MethodGet, wantOrigin: "*", wantCode: http.StatusOK},
		{name: "listed origin", allowed: "https://app.yare.ng/, http://localhost:5173", origin: "https://app.yare.ng", method: http.MethodGet, wantOrigin: "https://app.yare.ng", wantCreds: "true", wantCode: http.StatusOK},
		{name: "unlisted origin", allowed: "https://app.yare.ng", origin: "https://evil.test", method: http.MethodGet, wantCode: http.StatusOK},
		{name: "preflight", allowed: "*", origin: "https://x.test", method: http.MethodOptions, wantOrigin: "*", wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.allowed))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(tt.method, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
