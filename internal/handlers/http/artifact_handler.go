package http

import (
	"fmt"
	"net/http"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/errors"
	"overlaycam/pkg/tracing"
	"overlaycam/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ArtifactHandler serves exported stills and recordings from the artifact store.
type ArtifactHandler struct {
	repo    ports.ArtifactRepository
	backend string
}

func NewArtifactHandler(repo ports.ArtifactRepository, backend string) *ArtifactHandler {
	return &ArtifactHandler{
		repo:    repo,
		backend: backend,
	}
}

func (h *ArtifactHandler) SetupRoutes(api *gin.RouterGroup, guards RouteGuards) {
	artifacts := api.Group("/artifacts")
	{
		artifacts.GET("", h.ListArtifacts)
		artifacts.GET("/:id", h.GetArtifact)
		artifacts.GET("/:id/download", h.DownloadArtifact)
		artifacts.DELETE("/:id", chain(h.DeleteArtifact, guards.Control)...)
	}
}

func (h *ArtifactHandler) ListArtifacts(c *gin.Context) {
	ctx, span := tracing.TraceStorageOperation(c.Request.Context(), "list", h.backend)
	defer span.End()

	artifacts, err := h.repo.List(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"artifacts": artifacts,
		"total":     len(artifacts),
	})
}

func (h *ArtifactHandler) GetArtifact(c *gin.Context) {
	artifact, ok := h.load(c, "get")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifact": artifact})
}

func (h *ArtifactHandler) DownloadArtifact(c *gin.Context) {
	artifact, ok := h.load(c, "download")
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Name))
	c.Data(http.StatusOK, artifact.MimeType, artifact.Data)
}

func (h *ArtifactHandler) DeleteArtifact(c *gin.Context) {
	id, ok := artifactID(c)
	if !ok {
		return
	}
	ctx, span := tracing.TraceStorageOperation(c.Request.Context(), "delete", h.backend)
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.ArtifactIDKey.String(string(id)))

	if err := h.repo.Delete(ctx, id); err != nil {
		tracing.RecordError(ctx, err)
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ArtifactHandler) load(c *gin.Context, operation string) (*domain.Artifact, bool) {
	id, ok := artifactID(c)
	if !ok {
		return nil, false
	}
	start := time.Now()
	ctx, span := tracing.TraceStorageOperation(c.Request.Context(), operation, h.backend)
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.ArtifactIDKey.String(string(id)))

	artifact, err := h.repo.Get(ctx, id)
	tracing.MeasureDuration(ctx, start)
	if err != nil {
		tracing.RecordError(ctx, err)
		abortWithError(c, err)
		return nil, false
	}
	return artifact, true
}

func artifactID(c *gin.Context) (domain.ArtifactID, bool) {
	id := c.Param("id")
	if err := validation.ValidateArtifactID(id); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return domain.ArtifactID(id), true
}
