// internal/controller/mailer_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/smart-mailer/internal/errors"
	"github.com/unclebandit/smart-mailer/internal/logger"
	"github.com/unclebandit/smart-mailer/internal/mailer"
	"github.com/unclebandit/smart-mailer/internal/queue"
	"github.com/unclebandit/smart-mailer/internal/service"
)

// Multipart field names of a batch submission.
const (
	FieldSenderAddress = "senderEmailAddress"
	FieldSenderSecret  = "senderEmailPassword"
	FieldSubject       = "subject"
	FieldRecipients    = "receiverDetailsCSV"
	FieldTemplate      = "htmlContent"
	FieldMailerID      = "mailerId"
	FieldDepartments   = "departments"
)

type MailerController struct {
	Dispatcher      *service.Dispatcher
	CampaignService *service.CampaignService
	SingleService   *service.SingleService
	MaxUploadBytes  int64
	Log             *slog.Logger
}

// Routes mounts the mailer API on r.
func (c *MailerController) Routes(r chi.Router) {
	r.Post("/api/sender/batch", c.SubmitBatch)
	r.Post("/api/sender/single", c.SendSingle)
	r.Get("/api/mailer/create", c.CreateMailer)
	r.Get("/api/mailer/all", c.ListMailers)
	r.Get("/api/logs", c.GetLogs)
	r.Get("/api/clicks", c.GetClicks)
	r.Get("/api/jobs/{id}", c.GetJob)
	r.Delete("/api/jobs/{id}", c.CancelJob)
}

func (c *MailerController) logger() *slog.Logger {
	if c.Log == nil {
		return logger.NewNope()
	}
	return c.Log
}

func (c *MailerController) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	maxBytes := c.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, failure("upload too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, failure("invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	req := service.BatchRequest{
		SenderAddress: r.FormValue(FieldSenderAddress),
		SenderSecret:  r.FormValue(FieldSenderSecret),
		Subject:       r.FormValue(FieldSubject),
		MailerID:      r.FormValue(FieldMailerID),
		Departments:   r.FormValue(FieldDepartments),
	}

	if f, _, err := r.FormFile(FieldRecipients); err == nil {
		defer f.Close()
		req.Recipients = f
	}
	if f, _, err := r.FormFile(FieldTemplate); err == nil {
		body, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, failure("could not read HTML content"))
			return
		}
		tpl := string(body)
		req.Template = &tpl
	}

	res, err := c.Dispatcher.SubmitBatch(r.Context(), req)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"mailerId": res.MailerID,
		"jobId":    res.JobID,
	})
}

func (c *MailerController) SendSingle(w http.ResponseWriter, r *http.Request) {
	var body service.SingleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, failure("invalid body"))
		return
	}
	if err := c.SingleService.Send(r.Context(), body); err != nil {
		if errors.Is(err, mailer.ErrSendFailed) || mailer.IsPermanent(err) {
			writeJSON(w, http.StatusInternalServerError, failure(err.Error()))
			return
		}
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *MailerController) CreateMailer(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.CreateCampaign(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mailerId": campaign.ID})
}

func (c *MailerController) ListMailers(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.CampaignService.ListCampaigns(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mailers": campaigns})
}

func (c *MailerController) GetLogs(w http.ResponseWriter, r *http.Request) {
	stats, err := c.CampaignService.GetDeliveryStats(r.Context(), r.URL.Query().Get("mailerId"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *MailerController) GetClicks(w http.ResponseWriter, r *http.Request) {
	stats, err := c.CampaignService.GetClickStats(r.Context(), r.URL.Query().Get("mailerId"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *MailerController) GetJob(w http.ResponseWriter, r *http.Request) {
	st, err := c.Dispatcher.Status(chi.URLParam(r, "id"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *MailerController) CancelJob(w http.ResponseWriter, r *http.Request) {
	st, err := c.Dispatcher.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (c *MailerController) writeError(w http.ResponseWriter, err error) {
	var parseErr *appErrors.ParseError
	switch {
	case errors.As(err, &parseErr):
		writeJSON(w, http.StatusBadRequest, failure(err.Error()))
	case appErrors.IsCampaignNotFound(err):
		writeJSON(w, http.StatusUnauthorized, failure("Invalid mailerId"))
	case errors.Is(err, queue.ErrQueueFull), errors.Is(err, queue.ErrQueueClosed):
		writeJSON(w, http.StatusServiceUnavailable, failure("dispatcher is busy, retry later"))
	case errors.Is(err, service.ErrJobNotFound):
		writeJSON(w, http.StatusNotFound, failure(err.Error()))
	case errors.Is(err, service.ErrJobFinished):
		writeJSON(w, http.StatusConflict, failure(err.Error()))
	default:
		if reqErr, ok := appErrors.IsRequestError(err); ok {
			writeJSON(w, http.StatusBadRequest, failure(reqErr.Reason))
			return
		}
		c.logger().Error("request failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, failure("internal server error"))
	}
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
