package http

import (
	stderrors "errors"
	"net/http"
	"strings"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/internal/infrastructure/signal"
	"overlaycam/pkg/errors"
	"overlaycam/pkg/validation"

	"github.com/gin-gonic/gin"
)

type StudioHandler struct {
	studio  ports.StudioService
	preview *signal.PreviewServer
}

func NewStudioHandler(studio ports.StudioService, preview *signal.PreviewServer) *StudioHandler {
	return &StudioHandler{
		studio:  studio,
		preview: preview,
	}
}

// SetupRoutes registers the studio routes. Commands that change the session
// run behind the control guard; reads do not.
func (h *StudioHandler) SetupRoutes(api *gin.RouterGroup, guards RouteGuards) {
	studio := api.Group("/studio")
	{
		studio.GET("/state", h.GetState)
		studio.GET("/overlays", h.ListOverlays)
		studio.GET("/preview.jpg", h.PreviewSnapshot)
		studio.GET("/preview/ws", chain(h.PreviewStream, guards.WebSocket)...)

		studio.POST("/open", chain(h.Open, guards.Control)...)
		studio.POST("/close", chain(h.Close, guards.Control)...)
		studio.POST("/facing/toggle", chain(h.ToggleFacing, guards.Control)...)
		studio.POST("/move", chain(h.Move, guards.Control)...)
		studio.POST("/zoom/in", chain(h.ZoomIn, guards.Control)...)
		studio.POST("/zoom/out", chain(h.ZoomOut, guards.Control)...)
		studio.PUT("/overlay", chain(h.SelectOverlay, guards.Control)...)
		studio.POST("/capture", chain(h.Capture, guards.Control)...)
		studio.POST("/recording/start", chain(h.StartRecording, guards.Control)...)
		studio.POST("/recording/stop", chain(h.StopRecording, guards.Control)...)
		studio.POST("/recording/toggle", chain(h.ToggleRecording, guards.Control)...)
	}
}

type OpenRequest struct {
	Width      int    `json:"width" binding:"required"`
	Height     int    `json:"height" binding:"required"`
	FacingMode string `json:"facing_mode"`
}

type MoveRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type SelectOverlayRequest struct {
	Key string `json:"key" binding:"required,max=64"`
}

func (h *StudioHandler) Open(c *gin.Context) {
	var req OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateContainer(req.Width, req.Height); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}
	req.FacingMode = strings.TrimSpace(req.FacingMode)
	if err := validation.ValidateFacingMode(req.FacingMode); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	state, err := h.studio.Open(c.Request.Context(), domain.OpenRequest{
		Container:  domain.Bounds{Width: req.Width, Height: req.Height},
		FacingMode: domain.FacingMode(req.FacingMode),
	})
	h.respondState(c, state, err)
}

func (h *StudioHandler) Close(c *gin.Context) {
	if err := h.studio.Close(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.studio.State()})
}

func (h *StudioHandler) ToggleFacing(c *gin.Context) {
	state, err := h.studio.ToggleFacing(c.Request.Context())
	h.respondState(c, state, err)
}

// respondState reports a missing camera as a degraded but open session: the
// overlay keeps rendering and the state carries the operator message.
func (h *StudioHandler) respondState(c *gin.Context, state domain.StudioState, err error) {
	if err != nil && !(stderrors.Is(err, domain.ErrMediaUnavailable) && state.Open) {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *StudioHandler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateDirection(req.Direction); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	pos, err := h.studio.Move(domain.Direction(req.Direction))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

func (h *StudioHandler) ZoomIn(c *gin.Context) {
	h.respondScale(c, h.studio.ZoomIn)
}

func (h *StudioHandler) ZoomOut(c *gin.Context) {
	h.respondScale(c, h.studio.ZoomOut)
}

func (h *StudioHandler) respondScale(c *gin.Context, zoom func() (float64, error)) {
	scale, err := zoom()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scale": scale})
}

func (h *StudioHandler) ListOverlays(c *gin.Context) {
	state := h.studio.State()
	c.JSON(http.StatusOK, gin.H{
		"overlays": h.studio.Overlays(),
		"selected": state.Overlay,
		"ready":    state.OverlayOK,
	})
}

func (h *StudioHandler) SelectOverlay(c *gin.Context) {
	var req SelectOverlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.NewInvalidInputError("invalid request format"))
		return
	}
	if err := validation.ValidateOverlayKey(req.Key); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	if err := h.studio.SelectOverlay(c.Request.Context(), req.Key); err != nil {
		if stderrors.Is(err, domain.ErrUnknownOverlay) {
			abortWithError(c, errors.NewUnknownOverlayError(req.Key))
			return
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": h.studio.State()})
}

func (h *StudioHandler) Capture(c *gin.Context) {
	artifact, err := h.studio.Capture(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"artifact": artifact})
}

func (h *StudioHandler) StartRecording(c *gin.Context) {
	if err := h.studio.StartRecording(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recording": h.studio.State().Recording})
}

func (h *StudioHandler) StopRecording(c *gin.Context) {
	artifact, err := h.studio.StopRecording(c.Request.Context())
	h.respondRecording(c, artifact, err)
}

func (h *StudioHandler) ToggleRecording(c *gin.Context) {
	artifact, err := h.studio.ToggleRecording(c.Request.Context())
	h.respondRecording(c, artifact, err)
}

// respondRecording answers 201 when a stop produced an artifact and 200
// otherwise (a start, or a stop with nothing recorded).
func (h *StudioHandler) respondRecording(c *gin.Context, artifact *domain.Artifact, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	recording := h.studio.State().Recording
	if artifact == nil {
		c.JSON(http.StatusOK, gin.H{"recording": recording})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recording": recording, "artifact": artifact})
}

func (h *StudioHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"state": h.studio.State()})
}

func (h *StudioHandler) PreviewSnapshot(c *gin.Context) {
	data, err := h.preview.Snapshot()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *StudioHandler) PreviewStream(c *gin.Context) {
	h.preview.Hub().ServeWS(c.Writer, c.Request)
}
