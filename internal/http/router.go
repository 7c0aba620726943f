// Package http exposes the auth core over HTTP/JSON. Handlers decode the
// request, call one service operation, and map its error to the stable
// wire taxonomy; no business rules live here.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/internal/store"
	"github.com/freenoai/authd/pkg/httpx"
	"github.com/freenoai/authd/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	AuthService   *service.AuthService
	TokenService  *service.TokenService
	CodeService   *service.VerificationService
	ThesisService *service.ThesisService
	Scenes        *provider.Scenes
	WeChatMP      *provider.WeChatMP
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerEmail()
	r.registerPhone()
	r.registerSession()
	r.registerProviders()
	r.registerWeChat()
	r.registerThesis()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerEmail() {
	h := &EmailHandler{AuthService: r.AuthService, CodeService: r.CodeService}

	// Credential-bearing endpoints get the strict limit to slow brute force.
	r.Mux.Handle("POST /auth/email/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/email/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/email/send-code",
		httpx.Chain(http.HandlerFunc(h.HandleSendCode),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerPhone() {
	h := &PhoneHandler{AuthService: r.AuthService, CodeService: r.CodeService}

	r.Mux.Handle("POST /auth/phone/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/phone/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/phone/send-code",
		httpx.Chain(http.HandlerFunc(h.HandleSendCode),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/phone/bind",
		httpx.Chain(http.HandlerFunc(h.HandleBind),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /auth/refresh-token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /auth/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerProviders() {
	h := &ProviderHandler{AuthService: r.AuthService}

	// Literal patterns (email, phone, wechat) take precedence over the
	// {provider} wildcard, so first-party routes are never shadowed.
	r.Mux.Handle("POST /auth/{provider}/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /auth/{provider}/bind",
		httpx.Chain(http.HandlerFunc(h.HandleBind),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /auth/{provider}/unbind",
		httpx.Chain(http.HandlerFunc(h.HandleUnbind),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerWeChat() {
	h := &WeChatHandler{AuthService: r.AuthService, Scenes: r.Scenes, MP: r.WeChatMP}

	r.Mux.Handle("GET /auth/wechat/qrcode",
		httpx.Chain(http.HandlerFunc(h.HandleQRCode),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	// Polled by the browser while the code is on screen.
	r.Mux.Handle("GET /auth/wechat/scan-status/{scene}",
		httpx.Chain(http.HandlerFunc(h.HandleScanStatus),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /auth/wechat/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerThesis() {
	h := &ThesisHandler{ThesisService: r.ThesisService}

	r.Mux.Handle("POST /thesis/submissions",
		httpx.Chain(http.HandlerFunc(h.HandleSubmit),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /thesis/submissions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /thesis/submissions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	// Checker verdict callback; not a user-facing endpoint.
	r.Mux.Handle("POST /thesis/submissions/{id}/report",
		httpx.Chain(http.HandlerFunc(h.HandleReport),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
