package emaillogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/yare-hub/classroom/internal/models"
)

type stubLister struct {
	logs map[string][]*models.EmailLog
	err  error
}

func (s stubLister) ListByReference(_ context.Context, reference string) ([]*models.EmailLog, error) {
	if s.err != nil {
		return nil, s.err
	}
	if l, ok := s.logs[reference]; ok {
		return l, nil
	}
	return []*models.EmailLog{}, nil
}

func TestListByReference(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := map[string][]*models.EmailLog{
		"yare_1_ab": {{ID: uuid.New(), Reference: "yare_1_ab", EmailType: models.EmailTypePaymentConfirmation, RecipientEmail: "p@example.com", Status: models.EmailLogStatusSent}},
	}
	tests := []struct {
		name     string
		lister   stubLister
		ref      string
		wantCode int
		wantBody string
	}{
		{name: "found", lister: stubLister{logs: logs}, ref: "yare_1_ab", wantCode: http.StatusOK, wantBody: `"status":"sent"`},
		{name: "empty", lister: stubLister{logs: logs}, ref: "other", wantCode: http.StatusOK, wantBody: `"data":[]`},
		{name: "store error", lister: stubLister{err: errors.New("db down")}, ref: "yare_1_ab", wantCode: http.StatusInternalServerError, wantBody: "failed to load email logs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/payments/lesson-fees/:reference/emails", NewHandler(tt.lister).ListByReference)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/lesson-fees/"+tt.ref+"/emails", nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
