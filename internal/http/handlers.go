package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tileserver/internal/config"
	"tileserver/internal/encoder"
	"tileserver/internal/tile_renderer"
)

// statusClientClosedRequest is reported when the client went away before the
// tile was ready.
const statusClientClosedRequest = 499

type TileRenderer interface {
	RenderPNG(ctx context.Context, req tile_renderer.Request) (*tile_renderer.TileResult, error)
	DatasetInfo() tile_renderer.DatasetInfo
}

type Handlers struct {
	config   *config.Config
	logger   *zap.Logger
	validate *validator.Validate
	renderer TileRenderer
}

func New(config *config.Config, logger *zap.Logger, validate *validator.Validate, renderer TileRenderer) *Handlers {
	return &Handlers{
		config:   config,
		logger:   logger,
		validate: validate,
		renderer: renderer,
	}
}

// renderQuery is the query string of /render. Pointers tell a missing
// parameter apart from zero.
type renderQuery struct {
	MinLat *float64 `form:"minLat" validate:"required"`
	MinLon *float64 `form:"minLon" validate:"required"`
	MaxLat *float64 `form:"maxLat" validate:"required"`
	MaxLon *float64 `form:"maxLon" validate:"required"`
	Size   *int     `form:"size" validate:"omitempty,gte=1"`
}

func (q renderQuery) request() tile_renderer.Request {
	req := tile_renderer.Request{
		MinLat: *q.MinLat,
		MinLon: *q.MinLon,
		MaxLat: *q.MaxLat,
		MaxLon: *q.MaxLon,
	}
	if q.Size != nil {
		req.Size = *q.Size
	}
	return req
}

func (h *Handlers) RequestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		start := time.Now()

		c.Set("request_id", requestID)
		c.Header("X-Request-Id", requestID)

		c.Next()

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("ip", h.extractIP(c.Request)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

func (h *Handlers) CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := ""

		if h.config.AllowedOrigin != "" {
			allowedOrigin = h.config.AllowedOrigin
		} else {
			host := c.Request.Host
			if origin != "" && (strings.HasPrefix(origin, "http://"+host) || strings.HasPrefix(origin, "https://"+host)) {
				allowedOrigin = origin
			} else if origin == "" {
				allowedOrigin = "*"
			}
		}

		if allowedOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowedOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
			c.Header("Access-Control-Expose-Headers", "ETag, X-Tile-Source")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func (h *Handlers) HandleRender(c *gin.Context) {
	var q renderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed query: " + err.Error()})
		return
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	result, err := h.renderer.RenderPNG(c.Request.Context(), q.request())
	if err != nil {
		h.respondWithRenderError(c, err)
		return
	}

	etag := `"` + result.ETag + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("X-Tile-Source", result.Source)
	c.Header("X-Tile-Version", result.Version)

	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Header("Content-Length", strconv.Itoa(result.Size))

	// HEAD request doesn't send body
	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", encoder.ContentType)
		c.Status(http.StatusOK)
		return
	}

	c.Data(http.StatusOK, encoder.ContentType, result.Data)
}

func (h *Handlers) respondWithRenderError(c *gin.Context, err error) {
	c.Error(err)

	switch {
	case errors.Is(err, tile_renderer.ErrInvalidRequestParameters):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, tile_renderer.ErrDatasetUnavailable):
		h.logger.Error("Dataset unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dataset unavailable"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "render timed out"})
	case errors.Is(err, context.Canceled):
		c.Status(statusClientClosedRequest)
	default:
		h.logger.Error("Failed to render tile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render tile"})
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	name := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "gte":
		return name + " must be at least " + fe.Param()
	default:
		return name + " is invalid"
	}
}

func (h *Handlers) HandleDataset(c *gin.Context) {
	c.JSON(http.StatusOK, h.renderer.DatasetInfo())
}

func (h *Handlers) HandleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Not for real production use due to potential spoofing
// but it's fine for a demo
func (h *Handlers) extractIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return strings.Split(ip, ":")[0]
	}

	addr := r.RemoteAddr
	if addr != "" {
		return strings.Split(addr, ":")[0]
	}

	return "unknown"
}
