package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hilbertp/hypermvp/internal/models"
	"github.com/hilbertp/hypermvp/internal/services"

	"github.com/gin-gonic/gin"
)

const dateParam = "2006-01-02"

type PriceProvider interface {
	ResolveAndSave(ctx context.Context, startDate time.Time, endDate time.Time, eventID *string) (services.ResolveSummary, error)
	GetPrices(ctx context.Context, startDate time.Time, endDate time.Time, productCode string) ([]models.MarginalPrice, error)
}

type PricesController struct {
	service PriceProvider
}

type ResolveRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type ResolveResponse struct {
	RecordsWritten   int `json:"records_written"`
	Resolved         int `json:"resolved"`
	NoActivation     int `json:"no_activation"`
	NoOffers         int `json:"no_offers"`
	CapacityExceeded int `json:"capacity_exceeded"`
}

func NewPricesController(service PriceProvider) (*PricesController, error) {
	if service == nil {
		return nil, errors.New("resolver service is nil")
	}

	return &PricesController{service: service}, nil
}

func (c *PricesController) RegisterRoutes(router *gin.Engine) error {
	if c == nil {
		return errors.New("prices controller is nil")
	}
	if router == nil {
		return errors.New("router is nil")
	}

	router.POST("/resolve", c.resolve)
	router.GET("/prices", c.getPrices)
	return nil
}

func (c *PricesController) resolve(ctx *gin.Context) {
	var request ResolveRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	startDate, err := time.Parse(dateParam, request.StartDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid start_date"})
		return
	}
	endDate := startDate
	if request.EndDate != "" {
		endDate, err = time.Parse(dateParam, request.EndDate)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid end_date"})
			return
		}
	}

	summary, err := c.service.ResolveAndSave(ctx.Request.Context(), startDate, endDate, nil)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDateRange) {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid date range"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to resolve prices"})
		return
	}

	ctx.JSON(http.StatusOK, ResolveResponse{
		RecordsWritten:   summary.RecordsWritten,
		Resolved:         summary.Resolved,
		NoActivation:     summary.NoActivation,
		NoOffers:         summary.NoOffers,
		CapacityExceeded: summary.CapacityExceeded,
	})
}

func (c *PricesController) getPrices(ctx *gin.Context) {
	startDate, ok := parseDateQuery(ctx, "start")
	if !ok {
		return
	}
	endDate, ok := parseDateQuery(ctx, "end")
	if !ok {
		return
	}

	prices, err := c.service.GetPrices(ctx.Request.Context(), startDate, endDate, ctx.Query("product"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load prices"})
		return
	}

	ctx.JSON(http.StatusOK, prices)
}

// parseDateQuery reads an optional date query parameter. On a malformed
// value it writes the 400 response and reports false.
func parseDateQuery(ctx *gin.Context, name string) (time.Time, bool) {
	value := ctx.Query(name)
	if value == "" {
		return time.Time{}, true
	}

	parsed, err := time.Parse(dateParam, value)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name + " date"})
		return time.Time{}, false
	}

	return parsed, true
}
