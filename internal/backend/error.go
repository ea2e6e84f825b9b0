// Package backend defines the contracts between command operations and the
// remote service: structured errors, provider registration and paging.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MissingRegistrationCode is the error code the service returns when a
// resource provider is not registered for the subscription.
const MissingRegistrationCode = "MissingSubscriptionRegistration"

var quotedProvider = regexp.MustCompile(`.*'(.*)'`)

// Error is a failed backend response. Body keeps the raw payload.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Body       []byte
}

func (e *Error) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("(%s) %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseError builds an Error from a response status and body. Bodies that are
// not the standard error payload are kept verbatim as the message.
func ParseError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: body}
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Error.Code != "" || payload.Error.Message != "") {
		e.Code = payload.Error.Code
		e.Message = payload.Error.Message
		return e
	}
	e.Message = strings.TrimSpace(string(body))
	return e
}

// MissingRegistration reports whether err signals an unregistered resource
// provider and returns its namespace, e.g. "Microsoft.Cache".
func MissingRegistration(err error) (string, bool) {
	var be *Error
	if !errors.As(err, &be) {
		return "", false
	}
	code, message := be.Code, be.Message
	if code == "" && len(be.Body) > 0 {
		parsed := ParseError(be.StatusCode, be.Body)
		code, message = parsed.Code, parsed.Message
	}
	if code != MissingRegistrationCode {
		return "", false
	}
	m := quotedProvider.FindStringSubmatch(message)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}
