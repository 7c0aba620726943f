package http

import (
	"net/http"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
	"github.com/freenoai/authd/pkg/slogx"
)

type EmailHandler struct {
	AuthService *service.AuthService
	CodeService *service.VerificationService
}

func (h *EmailHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		errBadRequest.write(w)
		return
	}

	session, err := h.AuthService.LoginWithPassword(r.Context(), req.Email, req.Password, loginContext(r))
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *EmailHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		errBadRequest.write(w)
		return
	}

	session, err := h.AuthService.RegisterWithEmail(r.Context(), req.Email, req.Password, req.Name, loginContext(r))
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *EmailHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Type  string `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	purpose, ok := domain.ParsePurpose(req.Type)
	if req.Email == "" || !ok {
		errBadRequest.write(w)
		return
	}

	if err := h.CodeService.Send(r.Context(), domain.ChannelEmail, req.Email, purpose); err != nil {
		slogx.FromContext(r.Context()).Warn("email code send failed", "err", err)
		mapError(err).write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
