// internal/handler/handler.go
package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/SyedDaiam9101/ripeness-service/internal/middleware"
	"github.com/SyedDaiam9101/ripeness-service/internal/pipeline"
	"github.com/SyedDaiam9101/ripeness-service/internal/storage"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

// HealthChecker reports serving status; *health.Server satisfies it.
type HealthChecker interface {
	Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error)
}

// Options holds the knobs of the upload handlers.
type Options struct {
	// RetainUploads keeps stored files after prediction
	RetainUploads bool
	// MaxUploadBytes bounds the request body size
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

// Handler serves the upload form, the result page and the JSON prediction API.
type Handler struct {
	pipeline *pipeline.Pipeline
	uploads  *storage.Uploads
	health   HealthChecker
	opts     Options
	log      logrus.FieldLogger
}

// New creates a new Handler. health may be nil, in which case health endpoints
// always report serving.
func New(p *pipeline.Pipeline, uploads *storage.Uploads, health HealthChecker, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		pipeline: p,
		uploads:  uploads,
		health:   health,
		opts:     opts,
		log:      log,
	}
}

// Index renders the upload form
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "upload.html", nil)
}

// Upload handles a form submission: a missing file redirects back to the form,
// otherwise the file is stored, classified and the label rendered.
func (h *Handler) Upload(c *gin.Context) {
	header, err := h.formFile(c)
	if err != nil {
		if isTooLarge(err) {
			h.renderError(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		c.Redirect(http.StatusFound, "/")
		return
	}

	pred, err := h.classify(c, header)
	if err != nil {
		h.renderError(c, httpStatus(err), err)
		return
	}

	c.HTML(http.StatusOK, "result.html", gin.H{
		"result":      string(pred.Label),
		"probability": pred.Probability,
	})
}

// PredictJSON is the API form of Upload
func (h *Handler) PredictJSON(c *gin.Context) {
	requestID := middleware.GinRequestID(c)

	header, err := h.formFile(c)
	if err != nil {
		status := http.StatusBadRequest
		msg := "No image file provided. Use 'file' as the form field name"
		if isTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
			msg = publicMessage(status)
		}
		c.JSON(status, gin.H{"error": msg, "request_id": requestID})
		return
	}

	pred, err := h.classify(c, header)
	if err != nil {
		status := httpStatus(err)
		c.Error(err)
		c.JSON(status, gin.H{"error": publicMessage(status), "request_id": requestID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"label":       pred.Label,
		"probability": pred.Probability,
		"cached":      pred.Cached,
		"request_id":  requestID,
	})
}

// Healthz reports liveness through the shared health server
func (h *Handler) Healthz(c *gin.Context) {
	if !h.serving(c.Request.Context()) {
		c.String(http.StatusServiceUnavailable, "Service Unavailable")
		return
	}
	c.String(http.StatusOK, "OK")
}

// Readyz reports readiness (same as healthz for now)
func (h *Handler) Readyz(c *gin.Context) {
	if !h.serving(c.Request.Context()) {
		c.String(http.StatusServiceUnavailable, "Not Ready")
		return
	}
	c.String(http.StatusOK, "Ready")
}

func (h *Handler) serving(ctx context.Context) bool {
	if h.health == nil {
		return true
	}
	resp, err := h.health.Check(ctx, &healthpb.HealthCheckRequest{})
	return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
}

// formFile returns the uploaded file header, or an error when the field is
// absent or carries no filename.
func (h *Handler) formFile(c *gin.Context) (*multipart.FileHeader, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	header, err := c.FormFile(UploadField)
	if err != nil {
		return nil, err
	}
	if header.Filename == "" {
		return nil, http.ErrMissingFile
	}
	return header, nil
}

func (h *Handler) classify(c *gin.Context, header *multipart.FileHeader) (*pipeline.Prediction, error) {
	log := h.log.WithField("request_id", middleware.GinRequestID(c))

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	path, data, err := h.uploads.Save(f, header.Filename)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"client_filename": header.Filename,
		"stored_as":       path,
		"size":            header.Size,
	}).Debug("upload stored")

	if !h.opts.RetainUploads {
		defer func() {
			if err := h.uploads.Remove(path); err != nil {
				log.WithError(err).Warn("failed to remove upload")
			}
		}()
	}

	pred, err := h.pipeline.PredictBytes(c.Request.Context(), data)
	if err != nil {
		log.WithError(err).Error("prediction failed")
		return nil, err
	}
	return pred, nil
}

func (h *Handler) renderError(c *gin.Context, status int, err error) {
	c.Error(err)
	c.HTML(status, "error.html", gin.H{
		"message":    publicMessage(status),
		"request_id": middleware.GinRequestID(c),
	})
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
