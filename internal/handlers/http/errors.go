package http

import (
	"context"
	stderrors "errors"

	"overlaycam/internal/core/domain"
	"overlaycam/pkg/errors"

	"github.com/gin-gonic/gin"
)

// toAppError maps domain errors onto the API error codes. Anything unknown is
// reported as an internal error by the error middleware.
func toAppError(err error) error {
	if errors.GetAppError(err) != nil {
		return err
	}
	switch {
	case stderrors.Is(err, domain.ErrNotOpen):
		return errors.NewNotOpenError()
	case stderrors.Is(err, domain.ErrMediaUnavailable):
		return errors.NewMediaUnavailableError("camera is not available", err)
	case stderrors.Is(err, domain.ErrUnknownOverlay):
		return errors.Wrap(err, errors.ErrCodeUnknownOverlay, err.Error())
	case stderrors.Is(err, domain.ErrEncoderFault):
		return errors.NewEncoderFaultError(err)
	case stderrors.Is(err, domain.ErrArtifactNotFound):
		return errors.Wrap(err, errors.ErrCodeNotFound, "artifact not found")
	case stderrors.Is(err, domain.ErrSurfaceGone), stderrors.Is(err, domain.ErrStreamReleased):
		return errors.NewConflictError(err.Error())
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewServiceUnavailableError("operation timed out")
	}
	return err
}

func abortWithError(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}

// RouteGuards are the middlewares the server puts in front of command and
// websocket routes. Nil guards are skipped.
type RouteGuards struct {
	Control   gin.HandlerFunc
	WebSocket gin.HandlerFunc
}

func chain(handler gin.HandlerFunc, guards ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(guards)+1)
	for _, g := range guards {
		if g != nil {
			out = append(out, g)
		}
	}
	return append(out, handler)
}
