package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/course"
	"github.com/fleveque/course-service/internal/model"
	"github.com/fleveque/course-service/internal/service"
	"github.com/fleveque/course-service/internal/storage"
)

// sseName is the SSE event name every protocol event is sent under; the
// protocol's own discriminator lives in the JSON envelope.
const sseName = "message"

// eventStream writes protocol events as server-sent events.
//
// HTTP sends the status line and headers once, with the first byte of the
// body. Most failures, such as an unknown document or a generation that
// is already running, are detected before the service emits anything, so
// the headers are held back until the first event: those requests still get
// a proper status code with a JSON body. Once an event has been written the
// status is fixed at 200 and later failures travel in-band as error events.
//
// Flush after every event pushes it through gin's buffered writer, so the
// client sees text as the model produces it rather than when the handler
// returns.
type eventStream struct {
	c       *gin.Context
	started bool
	logger  *zap.Logger
}

func newEventStream(c *gin.Context, logger *zap.Logger) *eventStream {
	return &eventStream{c: c, logger: logger}
}

func (s *eventStream) emit(ev model.StreamEvent) error {
	payload, err := model.EncodeEvent(ev)
	if err != nil {
		return err
	}

	if !s.started {
		s.started = true
		s.c.Header("Cache-Control", "no-cache")
		s.c.Header("Connection", "keep-alive")
		s.c.Header("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
	}

	s.c.SSEvent(sseName, string(payload))
	s.c.Writer.Flush()

	// Stop generating for a client that went away.
	return s.c.Request.Context().Err()
}

// finish reports err as JSON when nothing has been streamed yet. Once
// streaming, the service has already sent the error event.
func (s *eventStream) finish(err error) {
	if err == nil || s.started {
		return
	}
	writeError(s.c, err, s.logger)
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, service.ErrGenerationInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyDocument), errors.Is(err, service.ErrUnknownAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, course.ErrGeneration):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(http.StatusRequestTimeout)
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
