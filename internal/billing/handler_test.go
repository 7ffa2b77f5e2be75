package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yare-hub/classroom/internal/middleware"
	"github.com/yare-hub/classroom/internal/models"
)

type handlerEnv struct {
	router   *gin.Engine
	store    *memStore
	provider *fakeProvider
	userID   uuid.UUID
}

func newHandlerEnv(t *testing.T, role models.Role) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &handlerEnv{store: newMemStore(), provider: &fakeProvider{}, userID: uuid.New()}
	ledger := NewLedger(env.store, env.provider, nil, "https://app.yare.test", "NGN", nil)
	h := NewHandler(ledger, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserID, env.userID)
		c.Set(middleware.ContextUserRole, role)
		c.Set(middleware.ContextUserEmail, "caller@example.com")
		c.Next()
	})
	r.POST("/payments/lesson-fees", h.CreateCharge)
	r.GET("/payments/lesson-fees/verify/:reference", h.VerifyPayment)
	r.GET("/payments/lesson-fees/history/:payerId", h.History)
	r.GET("/students/:id/subscription", h.Subscription)
	env.router = r
	return env
}

func (e *handlerEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHandlerCreateCharge(t *testing.T) {
	env := newHandlerEnv(t, models.RoleParent)
	w := env.do(http.MethodPost, "/payments/lesson-fees", map[string]interface{}{
		"student_ids": []string{uuid.NewString(), uuid.NewString()},
		"plan_name":   "Monthly",
		"duration":    30,
		"amount":      500000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Success bool   `json:"success"`
		Data    Charge `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Len(t, body.Data.LessonFeeIDs, 2)
	require.Len(t, env.provider.initCalls, 1)
	assert.Equal(t, "caller@example.com", env.provider.initCalls[0].Email)

	fees, _ := env.store.ListByReference(context.Background(), body.Data.Reference)
	require.Len(t, fees, 2)
	assert.Equal(t, env.userID, fees[0].PayerID)
	assert.Equal(t, models.RoleParent, fees[0].PayerType)
	assert.Equal(t, "30", fees[0].Duration)
}

func TestHandlerCreateChargeErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]interface{}
		initErr error
		want    int
	}{
		{name: "missing students", body: map[string]interface{}{"plan_name": "M", "duration": "30", "amount": 1}, want: http.StatusBadRequest},
		{name: "bad student id", body: map[string]interface{}{"student_ids": []string{"x"}, "plan_name": "M", "duration": "30", "amount": 1}, want: http.StatusBadRequest},
		{name: "bad duration", body: map[string]interface{}{"student_ids": []string{uuid.NewString()}, "plan_name": "M", "duration": "ever", "amount": 1}, want: http.StatusBadRequest},
		{name: "provider down", body: map[string]interface{}{"student_ids": []string{uuid.NewString()}, "plan_name": "M", "duration": "1 month", "amount": 1}, initErr: fmt.Errorf("%w: 503", ErrProvider), want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t, models.RoleParent)
			env.provider.initErr = tt.initErr
			w := env.do(http.MethodPost, "/payments/lesson-fees", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHandlerVerify(t *testing.T) {
	env := newHandlerEnv(t, models.RoleParent)
	paidAt := time.Now()
	student := uuid.New()
	env.store.addStudent(student)
	env.provider.verify = &Verification{Status: "success", PaidAt: &paidAt}

	w := env.do(http.MethodPost, "/payments/lesson-fees", map[string]interface{}{
		"student_ids": []string{student.String()},
		"plan_name":   "Monthly",
		"duration":    "30",
		"amount":      1000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data Charge `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(http.MethodGet, "/payments/lesson-fees/verify/"+created.Data.Reference, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"message":"payment verified"`)
	assert.True(t, env.store.student(student).IsSubscribed)

	w = env.do(http.MethodGet, "/students/"+student.String()+"/subscription", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_subscribed":true`)

	w = env.do(http.MethodGet, "/payments/lesson-fees/verify/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.provider.verify = &Verification{Status: "failed"}
	w = env.do(http.MethodGet, "/payments/lesson-fees/verify/"+created.Data.Reference, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "payment not successful")
}

func TestHandlerHistoryAccess(t *testing.T) {
	parent := newHandlerEnv(t, models.RoleParent)
	w := parent.do(http.MethodGet, "/payments/lesson-fees/history/"+parent.userID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	w = parent.do(http.MethodGet, "/payments/lesson-fees/history/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = parent.do(http.MethodGet, "/payments/lesson-fees/history/all", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := newHandlerEnv(t, models.RoleAdmin)
	w = admin.do(http.MethodGet, "/payments/lesson-fees/history/all", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = admin.do(http.MethodGet, "/payments/lesson-fees/history/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerSubscriptionNotFound(t *testing.T) {
	env := newHandlerEnv(t, models.RoleAdmin)
	w := env.do(http.MethodGet, "/students/"+uuid.NewString()+"/subscription", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
