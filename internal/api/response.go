// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

// Package api serves the dashboard frontend: read endpoints over the
// normalized cache and command endpoints feeding the sync engine.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Oxedos/devops-dashboard-sub000/internal/logging"
)

// APIResponse is the response wrapper shared by all endpoints.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNotConfigured    = "NOT_CONFIGURED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Err(err).Msg("Failed to encode API response")
	}
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeAccepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, APIResponse{Success: true, Data: data})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: message},
	})
}

func writeValidationError(w http.ResponseWriter, message string, details any) {
	writeJSON(w, http.StatusUnprocessableEntity, APIResponse{
		Success: false,
		Error:   &APIError{Code: ErrCodeValidationFailed, Message: message, Details: details},
	})
}
