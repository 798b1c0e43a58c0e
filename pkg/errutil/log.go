// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil helps log and inspect oops errors consistently.
package errutil

import (
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// UnknownCode is reported by Code for errors that carry no oops code.
const UnknownCode = "UNKNOWN"

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}

// Code returns the oops code of err as a string, or UnknownCode.
// Useful as a bounded metric label.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return UnknownCode
	}
	code := oopsErr.Code()
	if code == nil {
		return UnknownCode
	}
	if s := fmt.Sprint(code); s != "" {
		return s
	}
	return UnknownCode
}
