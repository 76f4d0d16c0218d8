// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package auth

import "fmt"

// AuthError reports a failed token exchange. It is never retried.
type AuthError struct {
	Op         string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ims %s failed (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ims %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
