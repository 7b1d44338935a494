package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"impex-service/internal/events"
	"impex-service/internal/impex"
	"impex-service/internal/models"
	"impex-service/internal/parser"
	"impex-service/internal/schema"
	"impex-service/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// MockImporter is a mock implementation of Importer
type MockImporter struct {
	mock.Mock
	schema *schema.Descriptor
}

func (m *MockImporter) Schema() *schema.Descriptor {
	return m.schema
}

func (m *MockImporter) ProcessCreateFile(ctx context.Context, src impex.Source) (*impex.CreateResult, error) {
	args := m.Called(ctx, src)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*impex.CreateResult), args.Error(1)
}

func (m *MockImporter) ProcessUpdateFile(ctx context.Context, id string, src impex.Source) (*models.Record, bool, error) {
	args := m.Called(ctx, id, src)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Record), args.Bool(1), args.Error(2)
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishImport(ctx context.Context, s events.ImportSummary) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// Helper to setup test router
func setupTestRouter(importer Importer, publisher EventPublisher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger, _ := test.NewNullLogger()
	NewImportHandler(importer, publisher, 1<<20, logger).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func multipartBody(t *testing.T, filename, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestImportRecords_Success(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	publisher := new(MockPublisher)
	router := setupTestRouter(importer, publisher)

	rec := models.NewRecord()
	rec.ID = "id-1"
	rec.Set("code", "C1")
	result := &impex.CreateResult{
		Records: []*models.Record{rec},
		Rejected: []impex.RowRejection{
			{Line: 3, Violations: []validation.Violation{{Field: "name", Reason: "is required"}}},
		},
		Total: 2,
	}

	importer.On("ProcessCreateFile", mock.Anything, mock.MatchedBy(func(src impex.Source) bool {
		return src.Filename == "cats.csv" && src.ContentType == "text/csv"
	})).Return(result, nil)
	publisher.On("PublishImport", mock.Anything, mock.MatchedBy(func(s events.ImportSummary) bool {
		return s.Subject == "category" && s.Action == events.ActionImported &&
			len(s.RecordIDs) == 1 && s.RecordIDs[0] == "id-1" && s.Rejected == 1
	})).Return(nil)

	body, ct := multipartBody(t, "cats.csv", "text/csv", "code,name,description\nC1,Widgets,All\nC2,,x\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/import", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success      bool             `json:"success"`
		TotalRows    int              `json:"totalRows"`
		SuccessCount int              `json:"successCount"`
		SkippedCount int              `json:"skippedCount"`
		CreatedIDs   []string         `json:"createdIds"`
		Errors       []ImportRowError `json:"errors"`
		Records      []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.TotalRows)
	assert.Equal(t, 1, resp.SuccessCount)
	assert.Equal(t, 1, resp.SkippedCount)
	assert.Equal(t, []string{"id-1"}, resp.CreatedIDs)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 3, resp.Errors[0].Row)
	assert.Equal(t, "name", resp.Errors[0].Column)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "C1", resp.Records[0]["code"])
	assert.Equal(t, "id-1", resp.Records[0]["id"])

	importer.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestImportRecords_PublishFailureDoesNotFailRequest(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	publisher := new(MockPublisher)
	router := setupTestRouter(importer, publisher)

	rec := models.NewRecord()
	rec.ID = "id-1"
	importer.On("ProcessCreateFile", mock.Anything, mock.Anything).
		Return(&impex.CreateResult{Records: []*models.Record{rec}, Total: 1}, nil)
	publisher.On("PublishImport", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	body, ct := multipartBody(t, "cats.csv", "", "code,name,description\nC1,Widgets,All\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/import", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	publisher.AssertExpectations(t)
}

func TestImportRecords_MissingFile(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	router := setupTestRouter(importer, nil)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/import", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FILE_REQUIRED", decodeError(t, w).Error.Code)
	importer.AssertNotCalled(t, "ProcessCreateFile", mock.Anything, mock.Anything)
}

func TestImportRecords_RawBody(t *testing.T) {
	importer := &MockImporter{schema: schema.NewReturnOrder()}
	publisher := new(MockPublisher)
	router := setupTestRouter(importer, publisher)

	importer.On("ProcessCreateFile", mock.Anything, mock.MatchedBy(func(src impex.Source) bool {
		return src.Filename == "returns.json" && src.ContentType == "application/json"
	})).Return(&impex.CreateResult{Records: []*models.Record{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/return-orders/import?filename=returns.json", strings.NewReader("[]"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	importer.AssertExpectations(t)
	// nothing imported, nothing announced
	publisher.AssertNotCalled(t, "PublishImport", mock.Anything, mock.Anything)
}

func TestImportRecords_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing filename", parser.ErrMissingFilename, http.StatusBadRequest, "FILENAME_REQUIRED"},
		{"unsupported format", &parser.FormatError{Filename: "x.txt"}, http.StatusBadRequest, "INVALID_FORMAT"},
		{"malformed json", parser.ErrMalformedJSON, http.StatusBadRequest, "PARSE_ERROR"},
		{"io failure", parser.ErrIOFailure, http.StatusBadRequest, "PARSE_ERROR"},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, "IMPORT_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			importer := &MockImporter{schema: schema.NewCategory()}
			publisher := new(MockPublisher)
			router := setupTestRouter(importer, publisher)
			importer.On("ProcessCreateFile", mock.Anything, mock.Anything).Return(nil, tt.err)

			body, ct := multipartBody(t, "x.txt", "", "data")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/import", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.err.Error())
			publisher.AssertNotCalled(t, "PublishImport", mock.Anything, mock.Anything)
		})
	}
}

func TestUpdateFromFile(t *testing.T) {
	importer := &MockImporter{schema: schema.NewReturnOrder()}
	publisher := new(MockPublisher)
	router := setupTestRouter(importer, publisher)

	rec := models.NewRecord()
	rec.ID = "ro-1"
	rec.Set("name", "Blue mug")
	importer.On("ProcessUpdateFile", mock.Anything, "ro-1", mock.Anything).Return(rec, true, nil)
	publisher.On("PublishImport", mock.Anything, mock.MatchedBy(func(s events.ImportSummary) bool {
		return s.Subject == "return_order" && s.Action == events.ActionUpdated && s.RecordIDs[0] == "ro-1"
	})).Return(nil)

	body, ct := multipartBody(t, "patch.json", "application/json", `[{"name":"Blue mug"}]`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/return-orders/ro-1/import", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ro-1", resp.Data["id"])
	assert.Equal(t, "Blue mug", resp.Data["name"])

	importer.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestUpdateFromFile_NoRecordsPublishesNothing(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	publisher := new(MockPublisher)
	router := setupTestRouter(importer, publisher)

	rec := models.NewRecord()
	rec.ID = "cat-1"
	importer.On("ProcessUpdateFile", mock.Anything, "cat-1", mock.Anything).Return(rec, false, nil)

	body, ct := multipartBody(t, "patch.csv", "", "code,name,description\n")
	req := httptest.NewRequest(http.MethodPut, "/api/v1/categories/cat-1/import", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	publisher.AssertNotCalled(t, "PublishImport", mock.Anything, mock.Anything)
}

func TestImportRecords_FileTooLarge(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger, _ := test.NewNullLogger()
	NewImportHandler(importer, nil, 256, logger).RegisterRoutes(router.Group("/api/v1"))

	t.Run("multipart", func(t *testing.T) {
		body, ct := multipartBody(t, "big.csv", "", "code,name,description\n"+strings.Repeat("C1,Widgets,All widgets\n", 200))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/import", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, w).Error.Code)
	})

	t.Run("raw body", func(t *testing.T) {
		tooLarge := fmt.Errorf("%w: %w", parser.ErrIOFailure, &http.MaxBytesError{Limit: 256})
		importer.On("ProcessCreateFile", mock.Anything, mock.Anything).Return(nil, tooLarge).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/categories/import?filename=big.csv", strings.NewReader("code\n"))
		req.Header.Set("Content-Type", "text/csv")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, w).Error.Code)
	})

	importer.AssertNotCalled(t, "ProcessUpdateFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateFromFile_NotFound(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	router := setupTestRouter(importer, nil)
	importer.On("ProcessUpdateFile", mock.Anything, "missing", mock.Anything).
		Return(nil, false, impex.ErrNotFound)

	body, ct := multipartBody(t, "patch.csv", "", "name\nX\n")
	req := httptest.NewRequest(http.MethodPut, "/api/v1/categories/missing/import", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Error.Code)
}

func TestGetImportTemplate(t *testing.T) {
	importer := &MockImporter{schema: schema.NewCategory()}
	router := setupTestRouter(importer, nil)

	t.Run("json", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories/import/template", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success  bool           `json:"success"`
			Template ImportTemplate `json:"template"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "categories", resp.Template.Entity)
		require.Len(t, resp.Template.Columns, len(schema.NewCategory().Fields()))
		assert.Equal(t, "code", resp.Template.Columns[0].Name)
		assert.True(t, resp.Template.Columns[0].Required)
		assert.Equal(t, "list", resp.Template.Columns[4].Type)
	})

	t.Run("csv", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories/import/template?format=csv", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "categories_import_template.csv")
		rows, err := csv.NewReader(w.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "code", rows[0][0])
		assert.Equal(t, "C1", rows[1][0])
	})

	t.Run("xlsx", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories/import/template?format=xlsx", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		f, err := excelize.OpenReader(w.Body)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Categories", "Instructions"}, f.GetSheetList())
		header, err := f.GetCellValue("Categories", "A1")
		require.NoError(t, err)
		assert.Equal(t, "code", header)
	})
}

func TestTemplateFor(t *testing.T) {
	template := TemplateFor(schema.NewReturnOrder())

	assert.Equal(t, "return-orders", template.Entity)
	require.Len(t, template.SampleData, 1)
	assert.Equal(t, "USD", template.SampleData[0]["currencyISOCode"])
	assert.Equal(t, "Return Orders", sheetTitle(template.Entity))
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", HealthCheck)
	r.GET("/ready", ReadinessCheck)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}
