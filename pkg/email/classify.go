package email

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
)

// Class buckets a provider failure by how the caller should react.
type Class int

const (
	ClassUnknown Class = iota
	ClassTransient
	ClassRateLimited
	ClassInvalidRecipient
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassInvalidRecipient:
		return "invalid_recipient"
	default:
		return "unknown"
	}
}

// SendError is a classified provider failure.
type SendError struct {
	Class Class
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("email send (%s): %v", e.Class, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt may succeed. Invalid
// recipients never will; everything else is worth another try.
func (e *SendError) Retryable() bool {
	return e.Class != ClassInvalidRecipient
}

// Classify wraps a raw SMTP error into a SendError. The SMTP reply code
// decides the class: 421/450-452 are transient (452 rate-limited), the
// 5xx recipient rejects are permanent, anything else is unknown. Network
// level failures count as transient.
func Classify(err error) *SendError {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 421, 450, 451:
			return &SendError{Class: ClassTransient, Err: err}
		case 452:
			return &SendError{Class: ClassRateLimited, Err: err}
		case 550, 551, 553:
			return &SendError{Class: ClassInvalidRecipient, Err: err}
		default:
			return &SendError{Class: ClassUnknown, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &SendError{Class: ClassTransient, Err: err}
	}

	return &SendError{Class: ClassUnknown, Err: err}
}
