package http

import (
	"net/http"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/internal/infrastructure/signal"
	"overlaycam/pkg/errors"
	"overlaycam/pkg/validation"

	"github.com/gin-gonic/gin"
)

type ScannerHandler struct {
	scanner ports.ScannerService
	events  *signal.ScanEventServer
}

func NewScannerHandler(scanner ports.ScannerService, events *signal.ScanEventServer) *ScannerHandler {
	return &ScannerHandler{
		scanner: scanner,
		events:  events,
	}
}

func (h *ScannerHandler) SetupRoutes(api *gin.RouterGroup, guards RouteGuards) {
	scanner := api.Group("/scanner")
	{
		scanner.GET("/status", h.GetStatus)
		scanner.GET("/last", h.GetLast)
		scanner.GET("/ws", chain(h.Events, guards.WebSocket)...)

		scanner.POST("/start", chain(h.Start, guards.Control)...)
		scanner.POST("/stop", chain(h.Stop, guards.Control)...)
	}
}

type StartScanRequest struct {
	FacingMode string `json:"facing_mode"`
}

func (h *ScannerHandler) Start(c *gin.Context) {
	var req StartScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, errors.NewInvalidInputError("invalid request format"))
			return
		}
	}
	if err := validation.ValidateFacingMode(req.FacingMode); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	if err := h.scanner.Start(c.Request.Context(), domain.FacingMode(req.FacingMode)); err != nil {
		abortWithError(c, err)
		return
	}
	h.GetStatus(c)
}

func (h *ScannerHandler) Stop(c *gin.Context) {
	h.scanner.Stop()
	h.GetStatus(c)
}

func (h *ScannerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running": h.scanner.Running(),
		"stream":  h.scanner.Stream(),
		"last":    h.scanner.Last(),
	})
}

func (h *ScannerHandler) GetLast(c *gin.Context) {
	last := h.scanner.Last()
	if last == nil {
		abortWithError(c, errors.NewNotFoundError("scan result"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": last})
}

func (h *ScannerHandler) Events(c *gin.Context) {
	h.events.Hub().ServeWS(c.Writer, c.Request)
}
