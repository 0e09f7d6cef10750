package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/pure-golang/bannermail/dispatch"
	"github.com/pure-golang/bannermail/logger"
	"github.com/pure-golang/bannermail/mail"
	"github.com/pure-golang/bannermail/recipients"
	"github.com/pure-golang/bannermail/scheduler"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type previewResponse struct {
	Total int      `json:"total"`
	Shown []string `json:"shown"`
}

type scheduleResponse struct {
	Message string            `json:"message"`
	Job     scheduler.JobInfo `json:"job"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case dispatch.IsInputError(err), errors.Is(err, recipients.ErrInvalidEncoding):
		return http.StatusBadRequest
	case errors.Is(err, scheduler.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, mail.ErrDelivery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.FromContextWithErr(r.Context(), err).Error("request failed")
		msg = http.StatusText(status)
	} else {
		logger.FromContext(r.Context()).Info("request rejected", "status", status, "error", msg)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (h *Handler) previewRecipients(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := readRecipients(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	shown, total := recipients.Preview(list, recipients.DefaultPreviewLimit)
	writeJSON(w, http.StatusOK, previewResponse{Total: total, Shown: shown.Strings()})
}

func (h *Handler) renderBanner(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := h.render(r.FormValue("text"), r.FormValue("background"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.readRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.service.SendNow(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Email sent to %d recipients", len(req.Recipients)),
	})
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := h.readRequest(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	at, err := dispatch.CombineDateTime(r.FormValue("date"), r.FormValue("time"), h.service.Location())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	job, err := h.service.Schedule(r.Context(), req, at)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, scheduleResponse{
		Message: fmt.Sprintf("Email scheduled for %s", job.RunAt.Format(time.RFC3339)),
		Job:     job,
	})
}

func (h *Handler) listJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.Pending())
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.jobs.Cancel(id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "job cancelled"})
}
