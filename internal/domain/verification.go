package domain

import "time"

// Channel is the delivery medium for a verification code.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Purpose scopes a verification code to one flow so a LOGIN code cannot be
// replayed as a BIND code.
type Purpose string

const (
	PurposeLogin    Purpose = "LOGIN"
	PurposeRegister Purpose = "REGISTER"
	PurposeBind     Purpose = "BIND"
	PurposeReset    Purpose = "RESET"
)

// ParsePurpose validates a client-supplied purpose string.
func ParsePurpose(s string) (Purpose, bool) {
	switch Purpose(s) {
	case PurposeLogin, PurposeRegister, PurposeBind, PurposeReset:
		return Purpose(s), true
	}
	return "", false
}

// VerificationCode is the cached state for one (channel, address, purpose)
// key. A single code is active per key; it is deleted on successful use.
type VerificationCode struct {
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expiresAt"`
}
