package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
)

type windowServiceMock struct {
	status    dto.EnrollmentStatusResponse
	list      dto.WindowsResponse
	updateErr error
	updated   *dto.UpdateWindowsRequest
}

func (m *windowServiceMock) Status(context.Context) dto.EnrollmentStatusResponse { return m.status }
func (m *windowServiceMock) List(context.Context) dto.WindowsResponse            { return m.list }

func (m *windowServiceMock) Update(_ context.Context, req dto.UpdateWindowsRequest) (*dto.WindowsResponse, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.updated = &req
	return &dto.WindowsResponse{Today: "2024-03-10"}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestWindowHandlerStatusClosed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWindowHandler(&windowServiceMock{status: dto.EnrollmentStatusResponse{
		Open:   false,
		Today:  "2024-03-10",
		Notice: "No hay procesos de inscripción abiertos actualmente.",
	}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/enrollment/status", nil)

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var status dto.EnrollmentStatusResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &status))
	assert.False(t, status.Open)
	assert.Equal(t, "No hay procesos de inscripción abiertos actualmente.", status.Notice)
}

func TestWindowHandlerUpdateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &windowServiceMock{}
	handler := NewWindowHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/admin/windows", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, mock.updated)
}

func TestWindowHandlerUpdate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &windowServiceMock{}
	handler := NewWindowHandler(mock)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := []byte(`{"proyecto":{"active":true,"start":"2024-03-01","end":"2024-03-31"},"teg":{"active":false,"start":"2024-03-01","end":"2024-03-31"}}`)
	req, _ := http.NewRequest(http.MethodPut, "/admin/windows", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.updated)
	assert.True(t, mock.updated.Project.Active)
	assert.Equal(t, "2024-03-31", mock.updated.Thesis.End)
}

func TestWindowHandlerUpdateStorageError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewWindowHandler(&windowServiceMock{updateErr: appErrors.ErrStorageWrite})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/admin/windows", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Update(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, appErrors.ErrStorageWrite.Code, decodeEnvelope(t, w).Error.Code)
}
