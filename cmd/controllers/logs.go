package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"
	"github.com/hilbertp/hypermvp/internal/services"

	"github.com/gin-gonic/gin"
)

const defaultLogsLimit = 20

type LogProvider interface {
	GetLogs(ctx context.Context, query services.LogQuery) ([]models.Log, error)
	PurgeLogs(ctx context.Context, before time.Time) (int, error)
}

type LogsController struct {
	service LogProvider
}

type LogsResponse struct {
	Count   int          `json:"count"`
	Entries []models.Log `json:"entries"`
}

type DeleteLogsResponse struct {
	Deleted int `json:"deleted"`
}

func NewLogsController(service LogProvider) (*LogsController, error) {
	if service == nil {
		return nil, errors.New("log service is nil")
	}

	return &LogsController{service: service}, nil
}

func (c *LogsController) RegisterRoutes(router *gin.Engine) error {
	if c == nil {
		return errors.New("logs controller is nil")
	}
	if router == nil {
		return errors.New("router is nil")
	}

	router.GET("/logs", c.getLogs)
	router.DELETE("/logs", c.deleteLogs)
	return nil
}

func (c *LogsController) getLogs(ctx *gin.Context) {
	query, err := parseLogsQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	logs, err := c.service.GetLogs(ctx.Request.Context(), query)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load logs"})
		return
	}

	ctx.JSON(http.StatusOK, LogsResponse{Count: len(logs), Entries: logs})
}

// deleteLogs truncates the audit trail. With a "before" date only the
// entries older than that date are purged, which is the retention
// cleanup mode.
func (c *LogsController) deleteLogs(ctx *gin.Context) {
	var before time.Time
	if value := ctx.Query("before"); value != "" {
		parsed, err := time.Parse(dateParam, value)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before date"})
			return
		}
		before = parsed
	}

	deleted, err := c.service.PurgeLogs(ctx.Request.Context(), before)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to delete logs"})
		return
	}

	ctx.JSON(http.StatusOK, DeleteLogsResponse{Deleted: deleted})
}

// parseLogsQuery reads the limit and the optional event/action/outcome
// filters. Action and outcome values are stored upper-case, so the
// filters are folded to match.
func parseLogsQuery(ctx *gin.Context) (services.LogQuery, error) {
	query := services.LogQuery{
		Limit:   defaultLogsLimit,
		EventID: parseLogsEventID(ctx),
		Action:  strings.ToUpper(strings.TrimSpace(ctx.Query("action"))),
		Outcome: strings.ToUpper(strings.TrimSpace(ctx.Query("outcome"))),
	}

	if value := ctx.Query("n"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit <= 0 {
			return services.LogQuery{}, errors.New("invalid logs limit")
		}
		query.Limit = limit
	}

	return query, nil
}

func parseLogsEventID(ctx *gin.Context) string {
	eventID := ctx.Query("eventId")
	if eventID == "" {
		eventID = ctx.Query("event_id")
	}
	return eventID
}
