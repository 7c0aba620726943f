package http

import (
	"net/http"

	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
)

type SessionHandler struct {
	AuthService *service.AuthService
}

func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		errBadRequest.write(w)
		return
	}

	pair, err := h.AuthService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tokens": pair})
}

func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.TokenFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}

	h.AuthService.Logout(r.Context(), token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token, ok := httpx.TokenFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}

	user, err := h.AuthService.Verify(r.Context(), token)
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(user)})
}
