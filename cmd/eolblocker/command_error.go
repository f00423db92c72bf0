// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
)

// Exit codes for every command.
const (
	CLIExitSuccess  = 0 // No CRLF found
	CLIExitFindings = 1 // At least one file contains CRLF
	CLIExitError    = 2 // Configuration, platform or usage failure
)

// ExitError carries a process exit code through cobra's error return.
//
// # Example
//
//	return &ExitError{Code: CLIExitFindings, Err: fmt.Errorf("%d file(s) contain CRLF", n)}
type ExitError struct {
	Code int
	Err  error
}

// Error returns the wrapped message.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps err to a process exit code. Errors without an ExitError
// in their chain (flag parsing, unknown commands) are usage failures.
func exitCode(err error) int {
	if err == nil {
		return CLIExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return CLIExitError
}
