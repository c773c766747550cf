// internal/handler/tracking_handler.go
package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/smart-mailer/internal/logger"
)

// transparent 1x1 PNG
var pixel, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=",
)

// ClickRecorder stores one open for a campaign. It reports false for unknown ids.
type ClickRecorder interface {
	RecordClick(ctx context.Context, mailerID string) (bool, error)
}

// TrackingHandler serves the beacon image embedded in every sent message.
type TrackingHandler struct {
	Clicks ClickRecorder
	Log    *slog.Logger
}

func (h *TrackingHandler) logger() *slog.Logger {
	if h.Log == nil {
		return logger.NewNope()
	}
	return h.Log
}

func (h *TrackingHandler) Routes(r chi.Router) {
	r.Get("/api/files/{mailerId}", h.ServePixel)
	r.Get("/api/files/{mailerId}/*", h.ServePixel)
}

// ServePixel records a click and always answers with the image, whatever
// happened to the click.
func (h *TrackingHandler) ServePixel(w http.ResponseWriter, r *http.Request) {
	mailerID := chi.URLParam(r, "mailerId")

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	recorded, err := h.Clicks.RecordClick(ctx, mailerID)
	cancel()
	switch {
	case err != nil:
		h.logger().Error("failed to record click", slog.String("mailer_id", mailerID), slog.Any("error", err))
	case !recorded:
		h.logger().Warn("click for unknown mailer", slog.String("mailer_id", mailerID))
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(pixel)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixel) //nolint:errcheck
}
