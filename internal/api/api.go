// Package api exposes the annotation engine over HTTP.
package api

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tagwise/tagwise/internal/annotation"
	"github.com/tagwise/tagwise/internal/annotator"
	"github.com/tagwise/tagwise/internal/assignment"
	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/dataset"
	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/errors"
	"github.com/tagwise/tagwise/internal/logging"
	"github.com/tagwise/tagwise/internal/observability"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	assignments *assignment.Service
	annotations *annotation.Service
	datasets    *dataset.Aggregator
	annotators  *annotator.Service

	logger      *slog.Logger
	loggerClose func() error
	metrics     *observability.Metrics
	startTime   time.Time
}

// New creates an API controller and registers all routes on e under
// /api/v1. metrics may be nil.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, metrics *observability.Metrics) *Controller {
	c := &Controller{
		Echo:        e,
		Group:       e.Group("/api/v1"),
		DS:          ds,
		Settings:    settings,
		assignments: assignment.NewService(ds, metrics),
		annotations: annotation.NewService(ds, metrics),
		datasets:    dataset.NewAggregator(settings, ds, metrics),
		annotators:  annotator.NewService(ds),
		logger:      logging.ForService("api"),
		metrics:     metrics,
		startTime:   time.Now(),
	}
	if c.logger == nil {
		c.logger = slog.Default().With("service", "api")
	}

	if settings.WebServer.Log.Enabled {
		fileLogger, closeFn, err := logging.NewFileLogger(
			settings.WebServer.Log.Path, "api", slog.LevelInfo,
			logging.FileLoggerConfig{
				MaxSizeMB:  settings.WebServer.Log.MaxSize,
				MaxBackups: settings.WebServer.Log.MaxBackups,
				MaxAgeDays: settings.WebServer.Log.MaxAge,
			})
		if err != nil {
			logging.Error("failed to open API log file, falling back to app logger",
				"path", settings.WebServer.Log.Path, "error", err)
		} else {
			c.logger = fileLogger
			c.loggerClose = closeFn
		}
	}

	c.Group.Use(c.requestLogger())
	c.initRoutes()
	return c
}

// Shutdown releases controller resources, closing the API log file when
// one is in use.
func (c *Controller) Shutdown() {
	if c.loggerClose != nil {
		if err := c.loggerClose(); err != nil {
			logging.Error("closing API log file", "error", err)
		}
	}
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)

	c.initDatasetRoutes()
	c.initItemRoutes()
	c.initAnnotatorRoutes()

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck reports service and database status.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(c.startTime).String(),
	}

	dbStatus := "connected"
	if _, err := c.DS.CountDatasets(ctx.Request().Context()); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	return ctx.JSON(http.StatusOK, response)
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError maps service errors onto HTTP status codes and logs them
// with a correlation ID.
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	code := statusFor(err)
	resp := &ErrorResponse{
		Error:         err.Error(),
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}

	c.logger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"error", err.Error())

	return ctx.JSON(code, resp)
}

func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidation(err):
		return http.StatusBadRequest
	case errors.IsNotAssigned(err), errors.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger tags every request with an id and logs it on completion.
func (c *Controller) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := ctx.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)

			start := time.Now()
			err := next(ctx)
			c.logger.Info("request",
				"request_id", requestID,
				"method", ctx.Request().Method,
				"path", ctx.Request().URL.Path,
				"status", ctx.Response().Status,
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
	}
}

const correlationIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func generateCorrelationID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	for i := range b {
		b[i] = correlationIDAlphabet[int(b[i])%len(correlationIDAlphabet)]
	}
	return string(b)
}
