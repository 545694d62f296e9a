/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(cfg *Config, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon(cfg))
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"./\">%s</a></body></html>", body))

	return htmlBody.String()
}

// Kind classifies every failure the client can surface.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindValidation Kind = "validation"
	KindFetch      Kind = "fetch"
	KindPermission Kind = "permission"
	KindParse      Kind = "parse"
)

const genericFailure = "Request failed."

// Error is a client error with a single human-readable message.
type Error struct {
	Kind    Kind
	Message string

	// Status is the upstream HTTP status, or 0 when no response was received.
	Status int

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil && e.Message == "" {
		return e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPStatus is the status the console answers with for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindFetch:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

var (
	ErrAuth       = &Error{Kind: KindAuth, Message: "not logged in"}
	ErrValidation = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrFetch      = &Error{Kind: KindFetch, Message: genericFailure}
	ErrPermission = &Error{Kind: KindPermission, Message: "Admin privileges required."}
	ErrParse      = &Error{Kind: KindParse, Message: "unexpected response shape"}
)

func authError(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg, Status: http.StatusUnauthorized}
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func permissionError(msg string) *Error {
	return &Error{Kind: KindPermission, Message: msg}
}

func fetchError(status int, msg string, cause error) *Error {
	if msg == "" {
		msg = genericFailure
	}
	return &Error{Kind: KindFetch, Message: msg, Status: status, cause: cause}
}

func parseError(what string, cause error) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf("unexpected %s payload: %v", what, cause), cause: cause}
}

// messageOf reduces any error to the one line a view shows inline.
func messageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func statusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
