package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yare-hub/classroom/config"
	"github.com/yare-hub/classroom/internal/auth"
	"github.com/yare-hub/classroom/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{CORSAllowedOrigins: "*", FrontendURL: "http://localhost:5173"},
		JWT:      config.JWTConfig{Secret: "test-secret", ExpireHours: 1},
		WebRTC:   config.WebRTCConfig{ICEUrls: []string{"stun:stun.l.google.com:19302"}},
		Realtime: config.RealtimeConfig{PresenceStore: "memory", SendBufferSize: 16, MaxMessageBytes: 1 << 16},
		Paystack: config.PaystackConfig{BaseURL: "http://127.0.0.1:0", Timeout: time.Second, Currency: "NGN"},
	}
}

func TestRouterWiring(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	router := newRouter(cfg, nil, nil, zap.NewNop())
	parent, err := auth.NewJWTService(cfg.JWT.Secret, 1).Generate(uuid.New(), "p@example.com", models.RoleParent)
	require.NoError(t, err)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "health", path: "/health", want: http.StatusOK},
		{name: "ice servers", path: "/rtc/ice-servers", want: http.StatusOK},
		{name: "room needs token", path: "/rooms/math101", want: http.StatusUnauthorized},
		{name: "room needs staff", path: "/rooms/math101", token: parent, want: http.StatusForbidden},
		{name: "email logs need admin", path: "/payments/lesson-fees/yare_1_x/emails", token: parent, want: http.StatusForbidden},
		{name: "websocket needs upgrade", path: "/ws", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
