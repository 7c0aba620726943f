package http

import (
	"net/http"
	"time"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
)

type ThesisHandler struct {
	ThesisService *service.ThesisService
}

type submissionPayload struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	DocumentURL string    `json:"documentUrl"`
	ReportID    string    `json:"reportId,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toSubmissionPayload(s domain.ThesisSubmission) submissionPayload {
	return submissionPayload{
		ID:          s.ID,
		Title:       s.Title,
		DocumentURL: s.DocumentURL,
		ReportID:    s.ReportID,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
	}
}

func (h *ThesisHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}

	var req struct {
		Title       string `json:"title"`
		DocumentURL string `json:"documentUrl"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.DocumentURL == "" {
		errBadRequest.write(w)
		return
	}

	sub, err := h.ThesisService.Submit(r.Context(), userID, req.Title, req.DocumentURL)
	if err != nil {
		mapError(err).write(w)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toSubmissionPayload(sub))
}

func (h *ThesisHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}

	sub, err := h.ThesisService.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		mapError(err).write(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSubmissionPayload(sub))
}

func (h *ThesisHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}

	subs, err := h.ThesisService.List(r.Context(), userID)
	if err != nil {
		mapError(err).write(w)
		return
	}

	payload := make([]submissionPayload, 0, len(subs))
	for _, s := range subs {
		payload = append(payload, toSubmissionPayload(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"submissions": payload})
}

// HandleReport receives the checker's verdict callback.
func (h *ThesisHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportID string `json:"reportId"`
		Status   string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var status domain.SubmissionStatus
	switch domain.SubmissionStatus(req.Status) {
	case domain.SubmissionDone, domain.SubmissionFailed:
		status = domain.SubmissionStatus(req.Status)
	default:
		errBadRequest.write(w)
		return
	}

	if err := h.ThesisService.CompleteReport(r.Context(), r.PathValue("id"), req.ReportID, status); err != nil {
		mapError(err).write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
