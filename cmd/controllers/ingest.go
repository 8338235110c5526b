package controllers

import (
	"errors"
	"net/http"

	"github.com/hilbertp/hypermvp/internal/services"

	"github.com/gin-gonic/gin"
)

type IngestController struct {
	service services.DataIngestor
}

type IngestRequest struct {
	Files []string `json:"files"`
}

type IngestResponse struct {
	RowsImported int    `json:"rows_imported"`
	FileCount    int    `json:"file_count"`
	MinDate      string `json:"min_date"`
	MaxDate      string `json:"max_date"`
}

func NewIngestController(service services.DataIngestor) (*IngestController, error) {
	if service == nil {
		return nil, errors.New("ingest service is nil")
	}

	return &IngestController{service: service}, nil
}

func (c *IngestController) RegisterRoutes(router *gin.Engine) error {
	if c == nil {
		return errors.New("ingest controller is nil")
	}
	if router == nil {
		return errors.New("router is nil")
	}

	router.POST("/ingest/provider", c.ingestProvider)
	router.POST("/ingest/afrr", c.ingestActivation)
	return nil
}

func (c *IngestController) ingestProvider(ctx *gin.Context) {
	var request IngestRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	summary, err := c.service.IngestProviderFiles(ctx.Request.Context(), request.Files, nil)
	if err != nil {
		respondIngestError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ingestResponse(summary))
}

func (c *IngestController) ingestActivation(ctx *gin.Context) {
	var request IngestRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	summary, err := c.service.IngestActivationFiles(ctx.Request.Context(), request.Files, nil)
	if err != nil {
		respondIngestError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ingestResponse(summary))
}

// respondIngestError maps validation failures to 422 with the batch
// diagnostic; the caller gets the file/sheet/column that aborted the
// batch and knows zero rows were committed.
func respondIngestError(ctx *gin.Context, err error) {
	var schemaErr *services.SchemaError
	var dateErr *services.DateParseError
	switch {
	case errors.Is(err, services.ErrNoInputFiles):
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "no input files"})
	case errors.As(err, &schemaErr), errors.As(err, &dateErr):
		ctx.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "ingestion failed"})
	}
}

func ingestResponse(summary services.IngestSummary) IngestResponse {
	return IngestResponse{
		RowsImported: summary.RowsImported,
		FileCount:    summary.FileCount,
		MinDate:      summary.MinDate.Format("2006-01-02"),
		MaxDate:      summary.MaxDate.Format("2006-01-02"),
	}
}
