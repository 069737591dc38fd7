package model

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// 에러 분류 sentinel (errors.Is 로 판별)
var (
	ErrInput           = errors.New("input error")
	ErrCredential      = errors.New("credential error")
	ErrVendorRefusal   = errors.New("vendor refusal")
	ErrVendorTransient = errors.New("vendor transient failure")
)

// 사용자에게 노출되는 메시지
const (
	RefusalUserMessage = "The selected photo could not be processed. Please try a different photo or reference image."
	FailureUserMessage = "Image generation failed. Please try again in a moment."
	CredentialMessage  = "The generation service is not configured. Please contact the staff."
)

// Error - 분류 + 상세 메시지 + 원인
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewInputError - 동기적으로 호출자에게 반환되는 입력 오류
func NewInputError(format string, args ...any) error {
	return &Error{Kind: ErrInput, Message: fmt.Sprintf(format, args...)}
}

// NewCredentialError - 자격 증명 누락/오류
func NewCredentialError(format string, args ...any) error {
	return &Error{Kind: ErrCredential, Message: fmt.Sprintf(format, args...)}
}

// WrapTransient - 네트워크/타임아웃 등 일시적 실패
func WrapTransient(err error, format string, args ...any) error {
	return &Error{Kind: ErrVendorTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

// UserMessage - 내부 에러를 사용자용 문구로 변환 (원문은 노출하지 않음)
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrVendorRefusal):
		return RefusalUserMessage
	case errors.Is(err, ErrCredential):
		return CredentialMessage
	case errors.Is(err, ErrInput):
		var e *Error
		if errors.As(err, &e) && e.Message != "" {
			return e.Message
		}
		return "Invalid input."
	default:
		return FailureUserMessage
	}
}

// PersistenceWarning - 이력/감사 기록 실패는 로그만 남기고 흐름은 계속
func PersistenceWarning(log zerolog.Logger, op string, err error) {
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("op", op).Msg("⚠️ persistence warning")
}
