// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"strings"

	"github.com/google/uuid"
)

func UUIDv4NoDash() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewRequestID is used when a caller does not send X-Request-ID.
func NewRequestID() string {
	return "dam-" + UUIDv4NoDash()[:16]
}
