// internal/handler/router.go
package handler

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/SyedDaiam9101/ripeness-service/internal/middleware"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses the embedded HTML pages.
func Templates() *template.Template {
	return template.Must(template.ParseFS(templatesFS, "templates/*.html"))
}

// NewRouter wires the handler, middleware and metrics endpoint into a gin engine.
func NewRouter(h *Handler, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Metrics(),
	)
	r.SetHTMLTemplate(Templates())

	r.GET("/", h.Index)
	r.POST("/", h.Upload)
	r.POST("/api/v1/predict", h.PredictJSON)

	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
