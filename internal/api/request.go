package api

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/photoshare/photoshare/internal/identity"
)

// Request is a transport-neutral request. Caller is resolved by the
// transport before the handler runs.
type Request struct {
	Method string
	Body   string
	Query  map[string]string
	Caller identity.Caller
}

// IsPreflight reports whether r is a CORS preflight request.
func (r Request) IsPreflight() bool {
	return r.Method == http.MethodOptions
}

// HandlerFunc handles a Request.
type HandlerFunc func(ctx context.Context, req Request) Response

// ProxyHandlerFunc is the signature lambda.Start expects for API Gateway proxy events.
type ProxyHandlerFunc func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// FromProxyRequest converts an API Gateway proxy event, reading the caller
// from the authorizer claims.
func FromProxyRequest(event events.APIGatewayProxyRequest, claim string) Request {
	body := event.Body
	if event.IsBase64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(body); err == nil {
			body = string(decoded)
		}
	}

	query := event.QueryStringParameters
	if query == nil {
		query = map[string]string{}
	}

	return Request{
		Method: event.HTTPMethod,
		Body:   body,
		Query:  query,
		Caller: identity.FromAuthorizer(event.RequestContext.Authorizer, claim),
	}
}

// Proxy adapts fn to an API Gateway proxy handler. Failures are always
// carried in the response; the returned error is always nil.
func Proxy(fn HandlerFunc, claim string) ProxyHandlerFunc {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return fn(ctx, FromProxyRequest(event, claim)).Proxy(), nil
	}
}
