package authz

import (
	"fmt"
	"net/http"
	"time"
)

// User-facing messages. These are deliberately generic: responses never
// distinguish "tenant doesn't exist" from "you are not a member", and never
// carry internal error text.
const (
	MsgAuthRequired       = "Kimlik doğrulama gerekli."
	MsgInvalidToken       = "Geçersiz veya süresi dolmuş oturum."
	MsgSessionTerminated  = "Oturum sonlandırıldı."
	MsgUserInactive       = "Kullanıcı bulunamadı veya pasif."
	MsgAccountLocked      = "Hesabınız geçici olarak kilitlendi."
	MsgTenantNotFound     = "Kiracı bulunamadı."
	MsgTenantForbidden    = "Bu kiracıya erişim yetkiniz yok."
	MsgPermissionDenied   = "Bu işlem için yetkiniz yok."
	MsgInvalidCredentials = "E-posta veya şifre hatalı."
)

// AuthenticationError is a "who are you" failure: missing/invalid/expired/
// revoked token, inactive user, locked account, non-member. Maps to 401.
type AuthenticationError struct {
	Message string
	cause   error
}

func (e *AuthenticationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("authentication: %s: %v", e.Message, e.cause)
	}
	return "authentication: " + e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.cause }

// AuthorizationError is a "you are known but forbidden" failure: role or
// permission denial. Maps to 403.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return "authorization: " + e.Message }

// NotFoundError means no tenant could be resolved from any source. Maps to 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Message }

// Unauthenticated wraps a cause (logged server-side, never surfaced) in an
// AuthenticationError with a user-facing message.
func Unauthenticated(msg string, cause error) error {
	return &AuthenticationError{Message: msg, cause: cause}
}

func Forbidden(msg string) error {
	return &AuthorizationError{Message: msg}
}

// LockedMessage renders the lockout message, appending the unlock time when
// known. Times are shown in UTC+3 (Türkiye), the audience of this service.
func LockedMessage(until *time.Time) string {
	if until == nil {
		return MsgAccountLocked
	}
	loc := time.FixedZone("TRT", 3*60*60)
	return fmt.Sprintf("Hesabınız geçici olarak kilitlendi. %s tarihine kadar tekrar deneyemezsiniz.",
		until.In(loc).Format("02.01.2006 15:04"))
}

// HTTPStatus maps a pipeline error to its response status.
// Unknown errors map to 401: the pipeline converts infrastructure failures
// into taxonomy errors itself, so anything else reaching here is a bug and
// must still fail closed.
func HTTPStatus(err error) int {
	switch err.(type) {
	case *AuthenticationError:
		return http.StatusUnauthorized
	case *AuthorizationError:
		return http.StatusForbidden
	case *NotFoundError:
		return http.StatusNotFound
	default:
		return http.StatusUnauthorized
	}
}

// UserMessage extracts the user-facing message from a taxonomy error.
func UserMessage(err error) string {
	switch e := err.(type) {
	case *AuthenticationError:
		return e.Message
	case *AuthorizationError:
		return e.Message
	case *NotFoundError:
		return e.Message
	default:
		return MsgAuthRequired
	}
}

// Envelope is the error response body: {"error":{"message":"..."}}.
type Envelope struct {
	Error EnvelopeBody `json:"error"`
}

type EnvelopeBody struct {
	Message string `json:"message"`
}

func NewEnvelope(err error) Envelope {
	return Envelope{Error: EnvelopeBody{Message: UserMessage(err)}}
}
