package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/freenoai/authd/internal/domain"
	"github.com/freenoai/authd/internal/service"
)

const maxRequestBody = 64 << 10

// decodeJSON reads the request body into dest. On failure it writes the
// bad-request response and returns false; the handler just returns.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		errBadRequest.write(w)
		return false
	}
	return true
}

// loginContext extracts the caller's address and agent for the login
// audit trail. Proxy headers win over the socket address.
func loginContext(r *http.Request) domain.LoginContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if i := strings.Index(ip, ","); i >= 0 {
			ip = ip[:i]
		}
		ip = strings.TrimSpace(ip)
	} else if ip = r.Header.Get("X-Real-IP"); ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return domain.LoginContext{IP: ip, UserAgent: r.UserAgent()}
}

// userPayload is the profile shape shared by login, register, and verify
// responses.
type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserPayload(u domain.User) userPayload {
	return userPayload{
		ID:        u.ID,
		Email:     u.Email,
		Phone:     u.Phone,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// sessionResponse is what every successful authentication returns.
type sessionResponse struct {
	Tokens domain.TokenPair `json:"tokens"`
	User   userPayload      `json:"user"`
}

func toSessionResponse(s service.Session) sessionResponse {
	return sessionResponse{Tokens: s.Tokens, User: toUserPayload(s.User)}
}
