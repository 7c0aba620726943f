package http

import (
	"net/http"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
	"github.com/freenoai/authd/pkg/slogx"
)

type WeChatHandler struct {
	AuthService *service.AuthService
	Scenes      *provider.Scenes
	MP          *provider.WeChatMP
}

func (h *WeChatHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	qr, err := h.Scenes.Create(r.Context())
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, qr)
}

// HandleScanStatus reports the polled scene state. Once the scene is
// scanned the response carries a full session, so the browser's next poll
// completes the login.
func (h *WeChatHandler) HandleScanStatus(w http.ResponseWriter, r *http.Request) {
	scene, err := h.Scenes.Status(r.Context(), r.PathValue("scene"))
	if err != nil {
		mapError(err).write(w)
		return
	}

	httpx.NoCache(w)
	switch scene.Status {
	case domain.SceneExpired:
		errSceneExpired.write(w)
	case domain.SceneScanned:
		session, err := h.AuthService.LoginWithVerifiedIdentity(
			r.Context(),
			domain.ProviderWeChatMP,
			provider.ExternalIdentity{ExternalID: scene.OpenID},
			loginContext(r),
		)
		if err != nil {
			mapError(err).write(w)
			return
		}
		resp := toSessionResponse(session)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status": scene.Status,
			"tokens": resp.Tokens,
			"user":   resp.User,
		})
	default:
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": scene.Status})
	}
}

// HandleCallback receives the platform's scan notification and binds the
// scanning user's open id to the scene. The callback signature must
// verify before anything is read from the body; a valid callback is
// always answered 200 so the platform does not re-deliver.
func (h *WeChatHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if h.MP == nil || !h.MP.VerifySignature(q.Get("signature"), q.Get("timestamp"), q.Get("nonce")) {
		slogx.FromContext(r.Context()).Warn("scan callback signature rejected")
		errInvalidSignature.write(w)
		return
	}

	var req struct {
		SceneStr string `json:"sceneStr"`
		OpenID   string `json:"openId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Scenes.MarkScanned(r.Context(), req.SceneStr, req.OpenID); err != nil {
		slogx.FromContext(r.Context()).Warn("scan callback for unknown scene", "scene", req.SceneStr)
	}
	w.WriteHeader(http.StatusOK)
}
