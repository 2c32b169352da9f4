// Package server provides the HTTP server for the photo-sharing API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/photoshare/photoshare/internal/api"

// ErrorResponse is the standard error response format.
type ErrorResponse = api.ErrorBody

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
