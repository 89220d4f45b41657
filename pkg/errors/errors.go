// Package errors provides error wrapping utilities and message sanitization
// for text that crosses from internal diagnostics into user-visible surfaces.
package errors

import (
	"fmt"
	"regexp"
)

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with formatted context information.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Local filesystem paths leak machine usernames and install locations.
// Matches Unix absolute paths and Windows drive paths with at least one
// separator after the root.
var pathRe = regexp.MustCompile(`(?:[A-Za-z]:)?[\\/](?:[\w.~-]+[\\/])+[\w.~-]+`)

// ScrubPaths redacts filesystem paths from a diagnostic message so it can be
// stored as a displayable error message.
func ScrubPaths(msg string) string {
	return pathRe.ReplaceAllString(msg, "<path>")
}
