package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	"github.com/noah-isme/teg-intake-api/internal/service"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
)

type recordExporterMock struct {
	query dto.RecordExportQuery
	err   error
}

func (m *recordExporterMock) Export(_ context.Context, q dto.RecordExportQuery) (*service.RecordExport, error) {
	m.query = q
	if m.err != nil {
		return nil, m.err
	}
	return &service.RecordExport{Content: []byte("a,b\n"), Filename: "registros_inscripcion.csv", ContentType: "text/csv; charset=utf-8"}, nil
}

func TestRecordExportHandlerCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &recordExporterMock{}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/admin/records/export?format=csv", nil)

	NewRecordExportHandler(mock).Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", mock.query.Format)
	assert.Equal(t, `attachment; filename="registros_inscripcion.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestRecordExportHandlerError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/admin/records/export", nil)

	NewRecordExportHandler(&recordExporterMock{err: appErrors.ErrRemoteAuth}).Export(c)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
