package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrNoTemplate          = errors.New("template not selected")
	ErrNotEnoughImages     = errors.New("not enough images uploaded")
	ErrNoIdentity          = errors.New("host user identity unavailable")
	ErrNoSession           = errors.New("no live generation session")
	ErrSessionLocked       = errors.New("generation session active elsewhere")
	ErrTransitionInFlight  = errors.New("transition already in flight")
	ErrInvalidTransition   = errors.New("event not allowed in current step")
	ErrMissingRequestID    = errors.New("generation request id not received")
	ErrPollTimeout         = errors.New("generation status polling timed out")
	ErrMissingResult       = errors.New("completed generation carries no result url")
	ErrMissingPaymentURL   = errors.New("payment url not received")
	ErrMissingInvoiceURL   = errors.New("invoice url not received")
	ErrPaymentNotCreated   = errors.New("payment creation failed")
	ErrInvoiceUnsupported  = errors.New("host does not support invoices")
	ErrPaymentNotConfirmed = errors.New("payment confirmation rejected")
	ErrUnknownStatus       = errors.New("unknown payment status")
	ErrInvoiceCancelled    = errors.New("invoice cancelled")
	ErrInvoiceFailed       = errors.New("invoice failed")
)

// ImageCountError reports too few uploaded images; it matches ErrNotEnoughImages.
type ImageCountError struct {
	Required int
	Got      int
}

func (e *ImageCountError) Error() string {
	return fmt.Sprintf("%v: got %d, need %d", ErrNotEnoughImages, e.Got, e.Required)
}

func (e *ImageCountError) Is(target error) bool { return target == ErrNotEnoughImages }

// ErrorKind is the failure taxonomy used to pick the recovery step.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindTransport         ErrorKind = "transport"
	KindUpstreamRejection ErrorKind = "upstream_rejection"
	KindPaymentOutcome    ErrorKind = "payment_outcome"
	KindGenerationFailure ErrorKind = "generation_failure"
	KindProtocolViolation ErrorKind = "protocol_violation"
)

// Error carries a taxonomy kind plus the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string // upstream or localized message, may be empty
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a domain error.
func E(kind ErrorKind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the taxonomy kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// MessageOf returns the innermost upstream message carried by err, if any.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Msg != "" {
		return de.Msg
	}
	return ""
}
