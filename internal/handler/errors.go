// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/SyedDaiam9101/ripeness-service/internal/model"
	"github.com/SyedDaiam9101/ripeness-service/internal/preprocess"
	"github.com/SyedDaiam9101/ripeness-service/internal/storage"
)

// httpStatus maps known internal errors to HTTP status codes
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, preprocess.ErrDecode), errors.Is(err, storage.ErrEmptyUpload):
		return http.StatusBadRequest

	case errors.Is(err, model.ErrLoad):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to clients; internal details stay in the logs
func publicMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The uploaded file is not a readable image. Supported: JPEG, PNG, GIF, BMP, TIFF, WEBP."
	case http.StatusRequestEntityTooLarge:
		return "The uploaded file is too large."
	case http.StatusServiceUnavailable:
		return "The ripeness model is not available."
	case http.StatusRequestTimeout:
		return "The request was canceled before a prediction was made."
	default:
		return "Prediction failed."
	}
}
