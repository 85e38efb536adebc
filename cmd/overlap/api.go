package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/playlist-overlap/pkg/compare"
	"github.com/Sternrassler/playlist-overlap/pkg/logging"
	"github.com/Sternrassler/playlist-overlap/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type compareRequest struct {
	Users []string `json:"users"`
}

type playlistsRequest struct {
	CallerID  string   `json:"caller_id" binding:"required"`
	Playlists []string `json:"playlists"`
	Mode      string   `json:"mode"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Handler serves the comparison API.
type Handler struct {
	svc comparer
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc comparer) *Handler {
	return &Handler{svc: svc}
}

// newRouter builds the gin engine with middleware and routes.
func newRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware())

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/compare", h.Compare)
	v1.POST("/compare/playlists", h.ComparePlaylists)
	v1.GET("/playlists/:id/creators", h.Creators)

	return router
}

// requestIDMiddleware keeps an incoming X-Request-ID or assigns a new one and
// stores a request-scoped logger in the request context.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := logging.FromContext(c.Request.Context())
		event := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Compare handles POST /v1/compare.
func (h *Handler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.svc.Compare(c.Request.Context(), req.Users)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ComparePlaylists handles POST /v1/compare/playlists.
func (h *Handler) ComparePlaylists(c *gin.Context) {
	var req playlistsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mode, err := compare.ParseMode(req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.svc.ComparePlaylists(c.Request.Context(), req.CallerID, req.Playlists, mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Creators handles GET /v1/playlists/:id/creators?caller_id=&limit=.
func (h *Handler) Creators(c *gin.Context) {
	callerID := c.Query("caller_id")
	if callerID == "" {
		badRequest(c, errors.New("caller_id is required"))
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	breakdown, err := h.svc.CreatorBreakdown(c.Request.Context(), callerID, c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error:     err.Error(),
		Kind:      string(compare.KindInvalidRequest),
		RequestID: c.GetString("request_id"),
	})
}

func writeError(c *gin.Context, err error) {
	kind := compare.Kind(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusForKind(kind), errorResponse{
		Error:     err.Error(),
		Kind:      string(kind),
		Hint:      compare.Hint(err),
		RequestID: c.GetString("request_id"),
	})
}

// statusForKind maps an error kind to the HTTP status of the response.
func statusForKind(kind compare.ErrorKind) int {
	switch kind {
	case compare.KindInvalidRequest:
		return http.StatusBadRequest
	case compare.KindNotAuthorized:
		return http.StatusForbidden
	case compare.KindResourceUnavailable:
		return http.StatusNotFound
	case compare.KindEmptyDenominator:
		return http.StatusUnprocessableEntity
	case compare.KindMalformedResponse:
		return http.StatusBadGateway
	case compare.KindThrottleExhausted:
		return http.StatusServiceUnavailable
	case compare.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
