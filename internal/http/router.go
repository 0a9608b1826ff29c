package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tileserver/internal/telemetry"
)

func NewRouter(h *Handlers, tracing bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if tracing {
		r.Use(telemetry.GinMiddleware())
	}
	r.Use(h.CORSMiddleware(), h.RequestLoggingMiddleware())

	r.GET("/render", h.HandleRender)
	r.HEAD("/render", h.HandleRender)
	r.GET("/api/dataset", h.HandleDataset)
	r.GET("/healthz", h.HandleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
