package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaystackInitialize(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://pay.example/abc","access_code":"abc","reference":"yare_1_x"}}`))
	}))
	defer srv.Close()

	p := NewPaystack("sk_test", srv.URL+"/", time.Second)
	res, err := p.Initialize(context.Background(), InitializeRequest{
		Email:       "p@example.com",
		AmountCents: 250000,
		Currency:    "NGN",
		Reference:   "yare_1_x",
		CallbackURL: "https://app/verify-payments?trxref=yare_1_x",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/abc", res.AuthorizationURL)
	assert.Equal(t, float64(250000), got["amount"])
	assert.Equal(t, "NGN", got["currency"])
	assert.Equal(t, "https://app/verify-payments?trxref=yare_1_x", got["callback_url"])
}

func TestPaystackVerify(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus string
		wantErr    error
	}{
		{
			name:       "success",
			status:     http.StatusOK,
			body:       `{"status":true,"data":{"reference":"r1","status":"success","paid_at":"2024-05-01T10:00:00.000Z","channel":"card","amount":5000,"currency":"NGN","customer":{"email":"p@example.com","first_name":"Ada","last_name":"Obi"}}}`,
			wantStatus: "success",
		},
		{
			name:       "abandoned",
			status:     http.StatusOK,
			body:       `{"status":true,"data":{"reference":"r1","status":"abandoned","paid_at":null}}`,
			wantStatus: "abandoned",
		},
		{
			name:       "unknown reference",
			status:     http.StatusBadRequest,
			body:       `{"status":false,"message":"Transaction reference not found"}`,
			wantStatus: "not_found",
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantErr: ErrProvider,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/r1", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v, err := NewPaystack("sk_test", srv.URL, time.Second).Verify(context.Background(), "r1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, v.Status)
			assert.Equal(t, tt.wantStatus == "success", v.Successful())
		})
	}
}

func TestPaystackVerifyFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"data":{"reference":"r1","status":"success","paid_at":"2024-05-01T10:00:00Z","channel":"bank","amount":5000,"currency":"NGN","customer":{"email":"p@example.com","first_name":"Ada","last_name":""}}}`))
	}))
	defer srv.Close()

	v, err := NewPaystack("sk", srv.URL, time.Second).Verify(context.Background(), "r1")
	require.NoError(t, err)
	require.NotNil(t, v.PaidAt)
	assert.True(t, v.PaidAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "bank", v.Channel)
	assert.Equal(t, int64(5000), v.AmountCents)
	assert.Equal(t, "p@example.com", v.CustomerEmail)
	assert.Equal(t, "Ada", v.CustomerName)
	assert.Contains(t, string(v.Raw), `"channel":"bank"`)
}

func TestPaystackTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewPaystack("sk", srv.URL, 20*time.Millisecond).Verify(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrProvider)
}
