package messenger

import (
	"errors"
	"net/http"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/neuroquiz/core/telegram/sender"
)

// Reason classifies a failed outbound call.
type Reason string

const (
	ReasonBlocked      Reason = "blocked"
	ReasonDeactivated  Reason = "deactivated"
	ReasonChatNotFound Reason = "chat_not_found"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonTimeout      Reason = "timeout"
	ReasonNetwork      Reason = "network"
	ReasonBadRequest   Reason = "bad_request"
	ReasonProvider     Reason = "provider"
	ReasonUnknown      Reason = "unknown"
)

// Error is returned by every Messenger method.
type Error struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	msg := "messenger: " + e.Op + ": " + string(e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code exposes the reason to handler summaries.
func (e *Error) Code() string { return string(e.Reason) }

// ReasonOf returns the reason carried by err, or "" when err is not an *Error.
func ReasonOf(err error) Reason {
	var me *Error
	if errors.As(err, &me) {
		return me.Reason
	}
	return ""
}

// Unreachable reports whether the user can no longer receive messages from the bot.
func Unreachable(err error) bool {
	switch ReasonOf(err) {
	case ReasonBlocked, ReasonDeactivated:
		return true
	}
	return false
}

// Classify wraps a transport error into *Error. nil stays nil.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	return &Error{Op: op, Reason: reasonFor(err), Err: err}
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, tele.ErrBlockedByUser):
		return ReasonBlocked
	case errors.Is(err, tele.ErrUserIsDeactivated):
		return ReasonDeactivated
	case errors.Is(err, tele.ErrChatNotFound):
		return ReasonChatNotFound
	}
	switch sender.Kind(err) {
	case "timeout":
		return ReasonTimeout
	case "dns", "dial", "tls":
		return ReasonNetwork
	}
	status := sender.HTTPStatus(err)
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimited
	case status == http.StatusForbidden:
		return ReasonBlocked
	case status >= 500:
		return ReasonProvider
	case status >= 400:
		return ReasonBadRequest
	}
	return ReasonUnknown
}
