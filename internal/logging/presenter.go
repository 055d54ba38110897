// Copyright (c) 2025 Universal MCP
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	errs "universalmcp/cli/internal/errors"
)

// PresentError returns the masked, user-facing text of err, prefixed with
// action when it is not empty. Typed errors show their friendly message and
// the underlying cause; other errors show their full text.
func PresentError(action string, err error) string {
	if err == nil {
		return ""
	}
	msg := errs.MessageOf(err)
	if cause := rootCause(err); cause != nil && cause.Error() != msg && errs.KindOf(err) != errs.Unknown {
		msg += " (" + cause.Error() + ")"
	}
	msg = Mask(msg)
	if action == "" {
		return msg
	}
	return action + ": " + msg
}

// rootCause returns the innermost error in err's unwrap chain, or nil when err
// wraps nothing.
func rootCause(err error) error {
	var cause error
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return cause
		}
		next := u.Unwrap()
		if next == nil {
			return cause
		}
		cause, err = next, next
	}
}
