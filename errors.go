package main

import (
	"errors"
	"fmt"
)

// errorKind is the category of a hubError.
type errorKind string

const (
	// kindConfiguration is fatal at startup: duplicate action, channel or
	// event binding.
	kindConfiguration errorKind = "configuration"
	// kindProtocol is a per-request client mistake, reported in-body.
	kindProtocol errorKind = "protocol"
	// kindSession means a session value was written without a session.
	kindSession errorKind = "session"
)

type hubError struct {
	Kind    errorKind
	Message string
}

func (e *hubError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on kind and message so sentinels work with errors.Is.
func (e *hubError) Is(target error) bool {
	t, ok := target.(*hubError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func configurationError(format string, args ...any) *hubError {
	return &hubError{Kind: kindConfiguration, Message: fmt.Sprintf(format, args...)}
}

func protocolError(message string) *hubError {
	return &hubError{Kind: kindProtocol, Message: message}
}

func sessionError(message string) *hubError {
	return &hubError{Kind: kindSession, Message: message}
}

var (
	ErrInvalidRecipients = protocolError("Recipients is not a list of client ids")
	ErrNoSession         = sessionError("Session does not exist")
)

// isKind reports whether err is a hubError of the given kind.
func isKind(err error, kind errorKind) bool {
	var he *hubError
	return errors.As(err, &he) && he.Kind == kind
}
