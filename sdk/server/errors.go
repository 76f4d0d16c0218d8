// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/auth"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/upload"
)

// APIResponse is the envelope of every JSON answer except raw provider passthroughs.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

func statusFor(err error) int {
	var verr *upload.ValidationError
	var aerr *auth.AuthError
	var perr *config.ProviderError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrContainerNotFound):
		return http.StatusNotFound
	case errors.As(err, &aerr):
		return http.StatusBadGateway
	case errors.As(err, &perr) && perr.StatusCode >= 400:
		return perr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail prefers the provider body, kept as JSON when it is JSON.
func errorDetail(err error) interface{} {
	var perr *config.ProviderError
	if errors.As(err, &perr) && len(perr.Body) > 0 {
		if json.Valid(perr.Body) {
			return json.RawMessage(perr.Body)
		}
		return string(perr.Body)
	}
	return err.Error()
}

func abortWithError(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), APIResponse{
		Success: false,
		Message: message,
		Error:   errorDetail(err),
	})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, APIResponse{Success: false, Error: message})
}
