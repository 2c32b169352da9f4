// Package api is the transport-neutral handler layer. It turns a Request
// into a Response with the shared JSON envelope and CORS headers; the Lambda
// and HTTP transports only convert to and from their own types.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/photoshare/photoshare/internal/apperr"
)

// PreflightMessage is the body of every CORS preflight response.
const PreflightMessage = "CORS preflight OK"

// Response is a transport-neutral reply.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// ErrorBody is the error envelope shared by every handler.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// MessageBody is a plain message reply.
type MessageBody struct {
	Message string `json:"message"`
}

// Responder builds Responses carrying the same headers.
type Responder struct {
	allowedOrigin string
	exposeDetails bool
	logger        *slog.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithAllowedOrigin sets Access-Control-Allow-Origin.
func WithAllowedOrigin(origin string) ResponderOption {
	return func(r *Responder) {
		if origin != "" {
			r.allowedOrigin = origin
		}
	}
}

// WithErrorDetails controls whether error details are returned to callers.
// Details are always logged.
func WithErrorDetails(expose bool) ResponderOption {
	return func(r *Responder) {
		r.exposeDetails = expose
	}
}

// WithResponderLogger sets the logger used for failures.
func WithResponderLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResponder creates a Responder that allows any origin and exposes
// error details.
func NewResponder(opts ...ResponderOption) *Responder {
	r := &Responder{
		allowedOrigin: "*",
		exposeDetails: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Headers returns the headers attached to every response.
func (r *Responder) Headers() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  r.allowedOrigin,
		"Access-Control-Allow-Headers": "Content-Type, Authorization",
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
	}
}

// JSON encodes v as the body of a response with the given status.
func (r *Responder) JSON(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		r.logger.Error("failed to encode response", slog.String("error", err.Error()))
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    r.Headers(),
			Body:       `{"error":"internal server error","code":"DEPENDENCY_ERROR"}`,
		}
	}
	return Response{StatusCode: status, Headers: r.Headers(), Body: string(body)}
}

// Failure maps err to the error envelope. fallback is the message used for
// errors that carry none.
func (r *Responder) Failure(err error, fallback string) Response {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	attrs := []any{
		slog.String("code", string(kind)),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", attrs...)
	} else {
		r.logger.Warn("request rejected", attrs...)
	}

	body := ErrorBody{
		Error: apperr.MessageOf(err, fallback),
		Code:  string(kind),
	}
	if r.exposeDetails {
		body.Details = err.Error()
	}
	return r.JSON(status, body)
}

// Preflight answers a CORS preflight request.
func (r *Responder) Preflight() Response {
	return r.JSON(http.StatusOK, MessageBody{Message: PreflightMessage})
}

// Proxy converts the response for API Gateway.
func (resp Response) Proxy() events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}
}

// Write writes the response to w.
func (resp Response) Write(w http.ResponseWriter) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(resp.Body))
}
