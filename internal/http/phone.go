package http

import (
	"net/http"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
	"github.com/freenoai/authd/pkg/slogx"
)

type PhoneHandler struct {
	AuthService *service.AuthService
	CodeService *service.VerificationService
}

func (h *PhoneHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Code == "" {
		errBadRequest.write(w)
		return
	}

	session, err := h.AuthService.LoginWithCode(r.Context(), req.Phone, req.Code, domain.PurposeLogin, loginContext(r))
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *PhoneHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
		Name  string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Code == "" {
		errBadRequest.write(w)
		return
	}

	session, err := h.AuthService.RegisterWithPhone(r.Context(), req.Phone, req.Code, req.Name, loginContext(r))
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *PhoneHandler) HandleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Type  string `json:"type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	purpose, ok := domain.ParsePurpose(req.Type)
	if req.Phone == "" || !ok {
		errBadRequest.write(w)
		return
	}

	if err := h.CodeService.Send(r.Context(), domain.ChannelSMS, req.Phone, purpose); err != nil {
		slogx.FromContext(r.Context()).Warn("sms code send failed", "err", err)
		mapError(err).write(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PhoneHandler) HandleBind(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}

	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Code == "" {
		errBadRequest.write(w)
		return
	}

	if err := h.AuthService.BindPhone(r.Context(), userID, req.Phone, req.Code); err != nil {
		mapError(err).write(w)
		return
	}

	user, err := h.AuthService.Store.Users().GetUserByID(r.Context(), userID)
	if err != nil {
		mapError(err).write(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(user)})
}
