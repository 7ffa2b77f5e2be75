package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestICEServers(t *testing.T) {
	tests := []struct {
		name string
		urls []string
		want []webrtc.ICEServer
	}{
		{
			name: "empty falls back to public stun",
			want: []webrtc.ICEServer{{URLs: []string{defaultSTUN}}},
		},
		{
			name: "turn gets credentials",
			urls: []string{"stun:s.example:3478", " ", "turn:t.example:3478"},
			want: []webrtc.ICEServer{
				{URLs: []string{"stun:s.example:3478"}},
				{URLs: []string{"turn:t.example:3478"}, Username: "u", Credential: "p", CredentialType: webrtc.ICECredentialTypePassword},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ICEServers(tt.urls, "u", "p"))
		})
	}
}

func TestICEHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/rtc/ice-servers", ICEHandler(ICEServers([]string{"stun:s.example:3478"}, "", "")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rtc/ice-servers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ICEServers []struct {
				URLs []string `json:"urls"`
			} `json:"iceServers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data.ICEServers, 1)
	assert.Equal(t, []string{"stun:s.example:3478"}, body.Data.ICEServers[0].URLs)
}
