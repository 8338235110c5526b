package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PipelineRunner interface {
	Run(ctx context.Context) error
}

type PipelineController struct {
	service PipelineRunner
}

type PipelineRunResponse struct {
	Status string `json:"status"`
}

func NewPipelineController(service PipelineRunner) (*PipelineController, error) {
	if service == nil {
		return nil, errors.New("pipeline service is nil")
	}

	return &PipelineController{service: service}, nil
}

func (c *PipelineController) RegisterRoutes(router *gin.Engine) error {
	if c == nil {
		return errors.New("pipeline controller is nil")
	}
	if router == nil {
		return errors.New("router is nil")
	}

	router.POST("/pipeline/run", c.run)
	return nil
}

func (c *PipelineController) run(ctx *gin.Context) {
	if err := c.service.Run(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: "pipeline run failed"})
		return
	}

	ctx.JSON(http.StatusOK, PipelineRunResponse{Status: "ok"})
}
