package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	v1 "github.com/fenceline-lab/fenceline/internal/api/v1"
	httperr "github.com/fenceline-lab/fenceline/internal/core/errors"
	"github.com/fenceline-lab/fenceline/internal/core/storage"
	"github.com/fenceline-lab/fenceline/internal/core/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(log storage.EventLog, maxBodySizeMB int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(log, maxBodySizeMB)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func postEvent(r *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSubmitHandler_Success(t *testing.T) {
	log := memory.NewLog()
	r := newTestRouter(log, 1)

	body, _ := json.Marshal(map[string]interface{}{
		"name": "scam_message_flagged",
		"properties": map[string]interface{}{
			"user_id": "12345",
		},
	})

	resp := postEvent(r, body)

	require.Equal(t, http.StatusAccepted, resp.Code)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, "accepted", result["status"])
	require.NotEmpty(t, result["event_id"])
	require.EqualValues(t, 1, result["log_position"])

	require.Equal(t, 1, log.Len())
	stored, err := log.ReadAfter(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "scam_message_flagged", stored[0].Name)
	require.False(t, stored[0].SubmittedAt.IsZero())
}

func TestSubmitHandler_IgnoresClientAssignedIdentity(t *testing.T) {
	log := memory.NewLog()
	r := newTestRouter(log, 1)

	body, _ := json.Marshal(map[string]interface{}{
		"id":   "client-chosen",
		"name": "purchase_made",
		"properties": map[string]interface{}{
			"user_id": "12345",
			"amount":  9.99,
		},
	})

	resp := postEvent(r, body)
	require.Equal(t, http.StatusAccepted, resp.Code)

	stored, err := log.ReadAfter(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotEqual(t, "client-chosen", stored[0].ID)
}

func TestSubmitHandler_InvalidJSON(t *testing.T) {
	r := newTestRouter(memory.NewLog(), 1)

	resp := postEvent(r, []byte("not json"))

	require.Equal(t, http.StatusBadRequest, resp.Code)

	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpInvalidJsonError, errResp.ErrorType)
}

func TestSubmitHandler_ValidationFailure(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "missing name",
			body: map[string]interface{}{
				"properties": map[string]interface{}{"user_id": "1"},
			},
		},
		{
			name: "missing properties",
			body: map[string]interface{}{
				"name": "purchase_made",
			},
		},
		{
			name: "missing user_id",
			body: map[string]interface{}{
				"name":       "purchase_made",
				"properties": map[string]interface{}{"amount": 1},
			},
		},
		{
			name: "non-string user_id",
			body: map[string]interface{}{
				"name":       "purchase_made",
				"properties": map[string]interface{}{"user_id": 12345},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := memory.NewLog()
			r := newTestRouter(log, 1)

			body, _ := json.Marshal(tt.body)
			resp := postEvent(r, body)

			require.Equal(t, http.StatusBadRequest, resp.Code)

			var errResp httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
			require.Equal(t, httperr.HttpValidationError, errResp.ErrorType)

			// Rejected events never reach the log.
			require.Zero(t, log.Len())
		})
	}
}

func TestSubmitHandler_BodyTooLarge(t *testing.T) {
	r := newTestRouter(memory.NewLog(), 1)

	huge := bytes.Repeat([]byte("a"), 2*1024*1024)
	resp := postEvent(r, huge)

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

// unavailableLog simulates an event log outage.
type unavailableLog struct{}

func (unavailableLog) Append(ctx context.Context, event *v1.Event) (int64, error) {
	return 0, storage.Unavailable(fmt.Errorf("connection refused"))
}

func (unavailableLog) ReadAfter(ctx context.Context, cursor int64, limit int) ([]*v1.Event, error) {
	return nil, storage.Unavailable(fmt.Errorf("connection refused"))
}

func TestSubmitHandler_LogUnavailable(t *testing.T) {
	r := newTestRouter(unavailableLog{}, 1)

	body, _ := json.Marshal(map[string]interface{}{
		"name": "scam_message_flagged",
		"properties": map[string]interface{}{
			"user_id": "12345",
		},
	})

	resp := postEvent(r, body)

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpStoreUnavailable, errResp.ErrorType)
}
