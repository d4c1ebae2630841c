package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/domain/session"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/sessiongate/internal/storage/profiles"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// ProfileUsage reports disk usage of a session's browser profile
type ProfileUsage interface {
	Usage(ctx context.Context, sessionID string) (profiles.Usage, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions *session.Manager
	profiles ProfileUsage
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// usageTimeout bounds the profile walk of the status endpoint
	usageTimeout time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(sessions *session.Manager, logger *zap.Logger) *Handlers {
	return &Handlers{
		sessions: sessions,
		logger:   logger.Named("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		usageTimeout: 2 * time.Second,
	}
}

// WithMetrics adds the metrics collector used by /health and the stream
func (h *Handlers) WithMetrics(metrics *monitoring.Metrics) *Handlers {
	h.metrics = metrics
	return h
}

// WithProfiles adds profile usage to the session status endpoint
func (h *Handlers) WithProfiles(p ProfileUsage) *Handlers {
	h.profiles = p
	return h
}

// Routes registers the session endpoints on r
func (h *Handlers) Routes(r gin.IRoutes) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.POST("/session/:id", h.CreateSession)
	r.GET("/session/:id", h.GetSession)
	r.DELETE("/session/:id", h.DeleteSession)
	r.GET("/session/:id/stream", h.StreamSession)
	r.GET("/sessions", h.ListSessions)

	r.GET("/qr/:id", h.GetQR)
	r.POST("/send-text/:id", h.SendText)
	r.GET("/connection-state/:id", h.ConnectionState)
}

// Root handles service info
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "sessiongate",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"sessions": h.sessions.Stats(),
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// CreateSession starts the pairing handshake of a session
func (h *Handlers) CreateSession(c *gin.Context) {
	id := c.Param("id")

	snap, created, err := h.sessions.Create(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Session %s initialization started", id),
		"status":  "started",
		"created": created,
		"state":   snap.State,
	})
}

// GetQR returns the latest pairing artifact of a session
func (h *Handlers) GetQR(c *gin.Context) {
	qr, err := h.sessions.PairingArtifact(c.Param("id"))
	if err != nil {
		h.fail(c, err, gin.H{"error": "QR code not yet generated or session does not exist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr": qr})
}

// SendTextRequest is the body of POST /send-text/:id
type SendTextRequest struct {
	Mobile  string `json:"mobile"`
	Message string `json:"message"`
}

// SendText sends a text message through a paired session
func (h *Handlers) SendText(c *gin.Context) {
	var req SendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Mobile == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Mobile number and message are required"})
		return
	}

	result, err := h.sessions.SendMessage(c.Request.Context(), c.Param("id"), req.Mobile, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidArgument):
			h.fail(c, err, gin.H{"error": err.Error()})
		case errors.Is(err, session.ErrServiceUnavailable):
			h.fail(c, err, gin.H{"error": "client not ready for this session"})
		default:
			h.fail(c, err, gin.H{"error": "Failed to send message", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// ConnectionState reports the transport state of a paired session
func (h *Handlers) ConnectionState(c *gin.Context) {
	status, err := h.sessions.ConnectionState(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, gin.H{"state": "NOT_INITIALIZED"})
		return
	}
	if status.State == session.ConnectionError {
		c.JSON(http.StatusInternalServerError, status)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": status.State})
}

// DeleteSession tears a session down in any state
func (h *Handlers) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err, gin.H{"error": fmt.Sprintf("Session %s does not exist", id)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Session %s deleted successfully", id),
		"status":  "deleted",
	})
}

// GetSession returns the status of one session
func (h *Handlers) GetSession(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.sessions.Status(id)
	if err != nil {
		h.fail(c, err, gin.H{"error": fmt.Sprintf("Session %s does not exist", id)})
		return
	}

	body := gin.H{"session": snap}
	if h.profiles != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.usageTimeout)
		defer cancel()
		if usage, err := h.profiles.Usage(ctx, id); err == nil {
			body["profile"] = usage
		} else {
			h.logger.Debug("profile usage unavailable", zap.String("session", id), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, body)
}

// ListSessions lists every registered session
func (h *Handlers) ListSessions(c *gin.Context) {
	list := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": list,
		"count":    len(list),
	})
}

// fail writes body with the status code matching err
func (h *Handlers) fail(c *gin.Context, err error, body gin.H) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		fields := append(tracing.LogFields(c.Request.Context()),
			zap.String("path", c.FullPath()),
			zap.String("session", c.Param("id")),
			zap.Error(err))
		h.logger.Error("request failed", fields...)
	}
	c.JSON(code, body)
}

// statusFor maps session errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrNotReady):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotInitialized),
		errors.Is(err, session.ErrServiceUnavailable),
		errors.Is(err, session.ErrShutdown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
