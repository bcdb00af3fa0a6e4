// Package httpapi serves the JSON polling surface for one project: job
// submission and status, soft cancel, the inbox listing and the review queue.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tapedeck/internal/jobs"
	"tapedeck/internal/logging"
	"tapedeck/internal/project"
	"tapedeck/internal/queue"
	"tapedeck/internal/services"
	"tapedeck/internal/worker"
)

// Server routes API requests to a project and its job facade.
type Server struct {
	echo    *echo.Echo
	project *project.Project
	jobs    *jobs.Service
	logger  *slog.Logger
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return services.Wrap(services.ErrValidation, "", "", "Invalid request: "+err.Error(), nil)
	}
	return nil
}

// New builds the router.
func New(p *project.Project, svc *jobs.Service, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	s := &Server{
		echo:    e,
		project: p,
		jobs:    svc,
		logger:  logging.NewComponentLogger(logger, "httpapi"),
	}
	e.HTTPErrorHandler = s.handleError
	s.middleware()
	s.routes()
	return s
}

func (s *Server) middleware() {
	s.echo.Use(middleware.BodyLimit("1M"))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := s.project.Context(services.WithRequestID(c.Request().Context(), id))
			c.SetRequest(c.Request().WithContext(ctx))
		},
	}))
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []logging.Attr{
				logging.Event("http_request"),
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String(logging.FieldCorrelationID, v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			s.logger.Debug("request", logging.Args(attrs...)...)
			return nil
		},
	}))
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("/jobs", s.listJobs)
	api.GET("/jobs/:id", s.getJob)
	api.POST("/jobs/:id/cancel", s.cancelJob)

	api.GET("/inbox", s.listInbox)
	api.POST("/ingest", s.submitIngest)
	api.POST("/ingest/all", s.submitIngestAll)
	api.POST("/tapes/:id/process", s.submitProcess)
	api.POST("/tapes/:id/export", s.submitExport)
	api.POST("/tapes/:id/suggestions/accept", s.acceptSuggestions)
	api.POST("/tapes/:id/suggestions/ignore", s.ignoreSuggestions)

	api.GET("/review", s.listReview)
	api.POST("/review/:id/resolve", s.resolveReview)
	api.POST("/review/:id/retry-backup", s.retryBackup)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.echo.Listener = ln
	if err := s.echo.Start(ln.Addr().String()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// statusFor maps domain errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation), errors.Is(err, queue.ErrUnknownType):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrNotCancelable):
		return http.StatusConflict
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrExternalTool):
		return http.StatusFailedDependency
	}
	return http.StatusInternalServerError
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := statusFor(err)
	message := services.UserMessage(err)

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logging.ErrorWithContext(logging.WithContext(c.Request().Context(), s.logger), "request failed", "http_request_failed",
			logging.String("path", c.Path()),
			logging.Error(err),
		)
		message = "internal error"
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorBody{Error: message})
}
