package http

import (
	"net/http"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
)

type ProviderHandler struct {
	AuthService *service.AuthService
}

// providerCredential is the provider-specific request body. Which fields
// a given adapter reads is its own business.
type providerCredential struct {
	Code    string `json:"code,omitempty"`
	IDToken string `json:"idToken,omitempty"`
}

func (c providerCredential) toCredential() provider.Credential {
	return provider.Credential{Code: c.Code, IDToken: c.IDToken}
}

func (h *ProviderHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	name := domain.Provider(r.PathValue("provider"))

	var req providerCredential
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.AuthService.LoginWithProvider(r.Context(), name, req.toCredential(), loginContext(r))
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *ProviderHandler) HandleBind(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}
	name := domain.Provider(r.PathValue("provider"))

	var req providerCredential
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.AuthService.BindProvider(r.Context(), userID, name, req.toCredential()); err != nil {
		mapError(err).write(w)
		return
	}
	h.writeUser(w, r, userID)
}

func (h *ProviderHandler) HandleUnbind(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		errInvalidToken.write(w)
		return
	}
	name := domain.Provider(r.PathValue("provider"))

	if err := h.AuthService.UnbindProvider(r.Context(), userID, name); err != nil {
		mapError(err).write(w)
		return
	}
	h.writeUser(w, r, userID)
}

// writeUser answers bind and unbind with the caller's profile.
func (h *ProviderHandler) writeUser(w http.ResponseWriter, r *http.Request, userID string) {
	user, err := h.AuthService.Store.Users().GetUserByID(r.Context(), userID)
	if err != nil {
		mapError(err).write(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserPayload(user)})
}
