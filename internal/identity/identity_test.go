package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photoshare/photoshare/internal/apperr"
)

func TestCaller_OrUnknown(t *testing.T) {
	assert.Equal(t, "unknown", Anonymous().OrUnknown())
	assert.Equal(t, "bob@example.com", Known("bob@example.com").OrUnknown())
	assert.Equal(t, "unknown", Known("   ").OrUnknown())
}

func TestCaller_Require(t *testing.T) {
	id, err := Known("bob@example.com").Require()
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id)

	_, err = Anonymous().Require()
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	assert.Equal(t, "User not authenticated", apperr.MessageOf(err, ""))
}

func TestFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]any
		claim  string
		want   Caller
	}{
		{"email claim", map[string]any{"email": "bob@example.com"}, "", Caller{ID: "bob@example.com", Known: true}},
		{"custom claim", map[string]any{"sub": "user-1"}, "sub", Caller{ID: "user-1", Known: true}},
		{"missing claim", map[string]any{"sub": "user-1"}, "email", Anonymous()},
		{"non-string claim", map[string]any{"email": 42}, "email", Anonymous()},
		{"nil claims", nil, "email", Anonymous()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromClaims(tt.claims, tt.claim))
		})
	}
}

func TestFromAuthorizer(t *testing.T) {
	authorizer := map[string]any{
		"claims": map[string]any{"email": "bob@example.com", "sub": "abc"},
	}
	assert.Equal(t, Known("bob@example.com"), FromAuthorizer(authorizer, "email"))

	assert.Equal(t, Anonymous(), FromAuthorizer(nil, "email"))
	assert.Equal(t, Anonymous(), FromAuthorizer(map[string]any{"principalId": "x"}, "email"))
}
