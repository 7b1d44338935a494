package handlers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"impex-service/internal/events"
	"impex-service/internal/impex"
	"impex-service/internal/models"
	"impex-service/internal/parser"
	"impex-service/internal/schema"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Importer runs bulk imports for one record type
type Importer interface {
	Schema() *schema.Descriptor
	ProcessCreateFile(ctx context.Context, src impex.Source) (*impex.CreateResult, error)
	ProcessUpdateFile(ctx context.Context, id string, src impex.Source) (*models.Record, bool, error)
}

// EventPublisher announces finished imports
type EventPublisher interface {
	PublishImport(ctx context.Context, s events.ImportSummary) error
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity     string                 `json:"entity"`
	Version    string                 `json:"version"`
	Columns    []ImportTemplateColumn `json:"columns"`
	SampleData []map[string]string    `json:"sampleData,omitempty"`
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool             `json:"success"`
	TotalRows    int              `json:"totalRows"`
	SuccessCount int              `json:"successCount"`
	SkippedCount int              `json:"skippedCount"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	CreatedIDs   []string         `json:"createdIds"`
	Records      []*models.Record `json:"records"`
}

type ImportHandler struct {
	importer       Importer
	publisher      EventPublisher
	maxUploadBytes int64
	logger         *logrus.Entry
}

// NewImportHandler creates a handler for one record type. publisher may be nil.
func NewImportHandler(importer Importer, publisher EventPublisher, maxUploadBytes int64, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		importer:       importer,
		publisher:      publisher,
		maxUploadBytes: maxUploadBytes,
		logger: logger.WithFields(logrus.Fields{
			"component": "handlers.import",
			"entity":    importer.Schema().Entity(),
		}),
	}
}

// RegisterRoutes mounts the import endpoints under /<entity>
func (h *ImportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/" + h.importer.Schema().Entity())
	{
		group.GET("/import/template", h.GetImportTemplate)
		group.POST("/import", h.ImportRecords)
		group.PUT("/:id/import", h.UpdateFromFile)
	}
}

// TemplateFor derives the import template of a record type
func TemplateFor(d *schema.Descriptor) ImportTemplate {
	fields := d.Fields()
	template := ImportTemplate{
		Entity:  d.Entity(),
		Version: "1.0",
		Columns: make([]ImportTemplateColumn, 0, len(fields)),
	}

	sample := make(map[string]string, len(fields))
	for _, f := range fields {
		template.Columns = append(template.Columns, ImportTemplateColumn{
			Name:        f.Name,
			Description: f.Description,
			Required:    f.Required,
			Type:        f.Kind.String(),
			Example:     f.Example,
		})
		sample[f.Name] = f.Example
	}
	template.SampleData = []map[string]string{sample}
	return template
}

// GetImportTemplate returns the import template definition or file
// @Summary Get import template
// @Tags import
// @Produce json
// @Param entity path string true "categories or return-orders"
// @Param format query string false "json, csv or xlsx"
// @Success 200 {object} ImportTemplate
// @Router /{entity}/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := TemplateFor(h.importer.Schema())

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template ImportTemplate) {
	c.Header("Content-Type", parser.ContentTypeCSV)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_import_template.csv", template.Entity))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)

	for _, sample := range template.SampleData {
		row := make([]string, len(template.Columns))
		for i, col := range template.Columns {
			row[i] = sample[col.Name]
		}
		writer.Write(row)
	}
}

// generateXLSXTemplate generates and downloads an Excel template. The
// service does not import spreadsheets; users fill it in and save it as CSV.
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := sheetTitle(template.Entity)
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.Name)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	for rowIdx, sample := range template.SampleData {
		for colIdx, col := range template.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, sample[col.Name])
		}
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", sheetName+" Import Instructions")
	f.SetCellValue("Instructions", "A2", "Save the first sheet as CSV before uploading. Separate list values with ';'.")
	f.SetCellValue("Instructions", "A3", "Column Definitions:")

	for i, col := range template.Columns {
		row := i + 4
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 28)
	f.SetColWidth("Instructions", "B", "B", 40)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_import_template.xlsx", template.Entity))

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to write xlsx template")
	}
}

// ImportRecords creates records from an uploaded CSV or JSON file
// @Summary Import records from file
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "categories or return-orders"
// @Param file formData file true "CSV or JSON file"
// @Success 200 {object} ImportResult
// @Failure 400 {object} models.ErrorResponse
// @Router /{entity}/import [post]
func (h *ImportHandler) ImportRecords(c *gin.Context) {
	src, closeFn, ok := h.source(c)
	if !ok {
		return
	}
	defer closeFn()

	result, err := h.importer.ProcessCreateFile(c.Request.Context(), src)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := toImportResult(result)
	if len(resp.CreatedIDs) > 0 {
		h.publish(c.Request.Context(), events.ActionImported, resp.CreatedIDs, len(result.Rejected), src.Filename)
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateFromFile merges the first record of an uploaded file into an existing record
// @Summary Update a record from file
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "categories or return-orders"
// @Param id path string true "Record ID"
// @Param file formData file true "CSV or JSON file"
// @Success 200 {object} models.Record
// @Failure 404 {object} models.ErrorResponse
// @Router /{entity}/{id}/import [put]
func (h *ImportHandler) UpdateFromFile(c *gin.Context) {
	id := c.Param("id")

	src, closeFn, ok := h.source(c)
	if !ok {
		return
	}
	defer closeFn()

	rec, updated, err := h.importer.ProcessUpdateFile(c.Request.Context(), id, src)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if updated {
		h.publish(c.Request.Context(), events.ActionUpdated, []string{rec.ID}, 0, src.Filename)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    rec,
	})
}

// source extracts the upload from the multipart field "file". Requests with
// any other body are read raw, named by the "filename" query parameter.
func (h *ImportHandler) source(c *gin.Context) (impex.Source, func(), bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return impex.Source{
			Reader:      c.Request.Body,
			Filename:    c.Query("filename"),
			ContentType: c.ContentType(),
		}, func() {}, true
	}

	file, header, err := c.Request.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("Upload exceeds the limit of %d bytes", tooLarge.Limit),
				Field:   "file",
			},
		})
		return impex.Source{}, nil, false
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a CSV or JSON file",
				Field:   "file",
			},
		})
		return impex.Source{}, nil, false
	}

	return impex.Source{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, func() { file.Close() }, true
}

func (h *ImportHandler) respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	code := "PARSE_ERROR"
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
		code = "FILE_TOO_LARGE"
	case errors.Is(err, parser.ErrMissingFilename):
		code = "FILENAME_REQUIRED"
	case errors.Is(err, parser.ErrUnsupportedFormat):
		code = "INVALID_FORMAT"
	case errors.Is(err, parser.ErrMalformedJSON), errors.Is(err, parser.ErrIOFailure):
		code = "PARSE_ERROR"
	case errors.Is(err, impex.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	default:
		status = http.StatusInternalServerError
		code = "IMPORT_FAILED"
	}

	h.logger.WithError(err).WithField("code", code).Warn("Import request failed")
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: err.Error(),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// publish is best effort; a failed publish never fails the request
func (h *ImportHandler) publish(ctx context.Context, action string, ids []string, rejected int, filename string) {
	if h.publisher == nil {
		return
	}
	d := h.importer.Schema()
	err := h.publisher.PublishImport(ctx, events.ImportSummary{
		Subject:   d.Subject(),
		Entity:    d.Entity(),
		Action:    action,
		RecordIDs: ids,
		Rejected:  rejected,
		Filename:  filename,
		Source:    "http",
	})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to publish import event")
	}
}

func toImportResult(result *impex.CreateResult) ImportResult {
	resp := ImportResult{
		Success:      len(result.Records) > 0 || result.Total == 0,
		TotalRows:    result.Total,
		SuccessCount: len(result.Records),
		SkippedCount: len(result.Rejected),
		CreatedIDs:   make([]string, 0, len(result.Records)),
		Records:      result.Records,
	}
	for _, rec := range result.Records {
		resp.CreatedIDs = append(resp.CreatedIDs, rec.ID)
	}
	for _, rej := range result.Rejected {
		for _, v := range rej.Violations {
			resp.Errors = append(resp.Errors, ImportRowError{
				Row:     rej.Line,
				Column:  v.Field,
				Code:    "VALIDATION_FAILED",
				Message: v.Reason,
			})
		}
	}
	return resp
}

// sheetTitle turns "return-orders" into "Return Orders"
func sheetTitle(entity string) string {
	words := strings.Split(entity, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
