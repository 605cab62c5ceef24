package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portwarden/scanner"
)

// ScanRunner runs one scan request to completion. *scanner.Engine satisfies it.
type ScanRunner interface {
	Run(ctx context.Context, req scanner.Request) (scanner.ScanReport, error)
}

var _ ScanRunner = (*scanner.Engine)(nil)

// Server bundles dependencies for HTTP handlers.
type Server struct {
	runner   ScanRunner
	slots    *ScanSlots
	strategy string
	started  time.Time
	logger   *zap.Logger
}

// NewServer creates a new API server instance.
func NewServer(runner ScanRunner, slots *ScanSlots, strategy string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		runner:   runner,
		slots:    slots,
		strategy: strategy,
		started:  time.Now(),
		logger:   logger.With(zap.String("component", "api")),
	}
}

// RegisterRoutes attaches handlers to the provided Gin engine. The middleware in protected
// guards the scan routes only.
func (s *Server) RegisterRoutes(router *gin.Engine, protected ...gin.HandlerFunc) {
	router.GET("/health", s.healthHandler)

	v1 := router.Group("/api/v1", protected...)
	v1.Use(BodyLimitMiddleware(MaxScanBodyBytes))
	v1.POST("/scan", s.scanHandler)
}

// @Summary      Scan one host
// @Description  Probes the requested TCP ports of one host and answers with the report once every port settled or the scan budget ran out.
// @Description  Outcomes come back in request order, duplicates included. Ports beyond the configured ceiling are dropped and counted in truncated.
// @Tags         Scans
// @Accept       json
// @Produce      json
// @Param        scanRequest  body      scanner.Request     true  "Scan request parameters"
// @Success      200          {object}  scanner.ScanReport  "Ordered scan report"
// @Failure      400          {object}  ErrorResponse       "Malformed JSON, invalid host, missing or invalid ports"
// @Failure      401          {object}  ErrorResponse       "Missing or incorrect API key"
// @Failure      403          {object}  ErrorResponse       "Target is the scanner's own machine"
// @Failure      413          {object}  ErrorResponse       "Request body too large"
// @Failure      429          {object}  ErrorResponse       "Rate limit exceeded"
// @Failure      500          {object}  ErrorResponse       "Scan aborted by an internal error"
// @Failure      503          {object}  ErrorResponse       "Every scan slot is busy"
// @Security     ApiKeyAuth
// @Router       /api/v1/scan [post]
func (s *Server) scanHandler(c *gin.Context) {
	var req scanner.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request payload: %v", err)})
		return
	}

	release, ok := s.slots.TryAcquire()
	if !ok {
		s.logger.Warn("scan rejected, no free slot", zap.Int("slots", s.slots.Size()))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "server is busy, retry later"})
		return
	}
	defer release()

	report, err := s.runner.Run(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Info("scan canceled by client",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("host", req.Host),
			)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("scan failed", zap.String("host", req.Host), zap.Error(err))
		}
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, report)
}

// @Summary      Service health
// @Description  Liveness information. It never touches the scan path.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Strategy:      s.strategy,
		UptimeSeconds: int64(time.Since(s.started) / time.Second),
		ActiveScans:   s.slots.Active(),
		MaxScans:      s.slots.Size(),
	})
}
