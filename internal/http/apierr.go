package http

import (
	"errors"
	"net/http"

	"github.com/freenoai/authd/internal/provider"
	"github.com/freenoai/authd/internal/service"
	"github.com/freenoai/authd/pkg/httpx"
	"github.com/freenoai/authd/pkg/jwtx"
)

// apiError is the stable wire shape for every failure. Internal detail
// and credential material never leak through it.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) write(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.Status, e)
}

var (
	errInvalidCredentials = apiError{http.StatusUnauthorized, "invalid_credentials", "invalid credentials"}
	errInvalidCode        = apiError{http.StatusUnauthorized, "invalid_code", "invalid or expired verification code"}
	errInvalidToken       = apiError{http.StatusUnauthorized, "invalid_token", "invalid or expired token"}
	errAlreadyRegistered  = apiError{http.StatusConflict, "already_registered", "identifier is already registered"}
	errAlreadyLinked      = apiError{http.StatusConflict, "already_linked", "identity is already linked to an account"}
	errNotLinked          = apiError{http.StatusConflict, "not_linked", "no such identity link"}
	errLastAuthMethod     = apiError{http.StatusConflict, "last_auth_method", "cannot remove the last sign-in method"}
	errUnknownProvider    = apiError{http.StatusNotFound, "unknown_provider", "unknown identity provider"}
	errProviderDisabled   = apiError{http.StatusServiceUnavailable, "provider_disabled", "identity provider is not configured"}
	errUpstream           = apiError{http.StatusBadGateway, "upstream_unavailable", "identity provider is unreachable"}
	errDecryptionFailed   = apiError{http.StatusBadRequest, "decryption_failed", "could not decrypt payload"}
	errRateLimited        = apiError{http.StatusTooManyRequests, "rate_limited", "too many requests, slow down"}
	errSceneNotFound      = apiError{http.StatusNotFound, "scene_not_found", "unknown login scene"}
	errInvalidSignature   = apiError{http.StatusForbidden, "invalid_signature", "callback signature verification failed"}
	errSceneExpired       = apiError{http.StatusGone, "scene_expired", "login code has expired"}
	errSubmissionNotFound = apiError{http.StatusNotFound, "submission_not_found", "no such submission"}
	errCheckerUnavailable = apiError{http.StatusBadGateway, "checker_unavailable", "plagiarism checker is unreachable"}
	errBadRequest         = apiError{http.StatusBadRequest, "bad_request", "malformed request"}
	errServerError        = apiError{http.StatusInternalServerError, "server_error", "internal server error"}
)

// mapError translates the service and provider taxonomies to the wire.
// Anything unmapped is a server error; the handler logs the cause.
func mapError(err error) apiError {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return errInvalidCredentials
	case errors.Is(err, service.ErrInvalidCode):
		return errInvalidCode
	case errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrRevoked),
		errors.Is(err, jwtx.ErrExpired),
		errors.Is(err, jwtx.ErrMalformed):
		return errInvalidToken
	case errors.Is(err, service.ErrAlreadyRegistered):
		return errAlreadyRegistered
	case errors.Is(err, service.ErrAlreadyLinked):
		return errAlreadyLinked
	case errors.Is(err, service.ErrNotLinked):
		return errNotLinked
	case errors.Is(err, service.ErrLastAuthMethod):
		return errLastAuthMethod
	case errors.Is(err, service.ErrRateLimited):
		return errRateLimited
	case errors.Is(err, service.ErrSubmissionNotFound):
		return errSubmissionNotFound
	case errors.Is(err, service.ErrCheckerUnavailable):
		return errCheckerUnavailable
	case errors.Is(err, provider.ErrInvalidCredential):
		return errInvalidCredentials
	case errors.Is(err, provider.ErrUnknownProvider):
		return errUnknownProvider
	case errors.Is(err, provider.ErrNotConfigured):
		return errProviderDisabled
	case errors.Is(err, provider.ErrUpstreamUnavailable):
		return errUpstream
	case errors.Is(err, provider.ErrDecryptionFailed):
		return errDecryptionFailed
	case errors.Is(err, provider.ErrSceneNotFound):
		return errSceneNotFound
	default:
		return errServerError
	}
}
