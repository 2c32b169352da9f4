// Package identity resolves who is calling a handler. Identity is resolved
// once at the transport boundary and handed to the services as a Caller, so
// each service states its own policy for anonymous callers.
package identity

import (
	"strings"

	"github.com/photoshare/photoshare/internal/apperr"
)

// DefaultClaim is the claim that carries the caller's identity.
const DefaultClaim = "email"

// Unknown is recorded as the uploader when no identity is available.
const Unknown = "unknown"

// Caller is the resolved identity of a request.
type Caller struct {
	ID    string
	Known bool
}

// Anonymous returns a Caller without an identity.
func Anonymous() Caller {
	return Caller{}
}

// Known returns a Caller for id. A blank id yields an anonymous Caller.
func Known(id string) Caller {
	id = strings.TrimSpace(id)
	if id == "" {
		return Anonymous()
	}
	return Caller{ID: id, Known: true}
}

// OrUnknown returns the identity, or Unknown for anonymous callers.
func (c Caller) OrUnknown() string {
	if !c.Known {
		return Unknown
	}
	return c.ID
}

// Require returns the identity, or an unauthorized error for anonymous callers.
func (c Caller) Require() (string, error) {
	if !c.Known {
		return "", apperr.Unauthorized("User not authenticated", nil)
	}
	return c.ID, nil
}

// FromClaims reads claim from a decoded claims map.
func FromClaims(claims map[string]any, claim string) Caller {
	if claims == nil {
		return Anonymous()
	}
	if claim == "" {
		claim = DefaultClaim
	}
	v, ok := claims[claim].(string)
	if !ok {
		return Anonymous()
	}
	return Known(v)
}

// FromAuthorizer reads claim from an API Gateway authorizer context, where
// user pool claims are nested under "claims".
func FromAuthorizer(authorizer map[string]any, claim string) Caller {
	if authorizer == nil {
		return Anonymous()
	}
	claims, ok := authorizer["claims"].(map[string]any)
	if !ok {
		return Anonymous()
	}
	return FromClaims(claims, claim)
}
