package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindClient, http.StatusBadRequest},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindValidation, http.StatusUnprocessableEntity},
		{KindDependency, http.StatusInternalServerError},
		{KindConfiguration, http.StatusInternalServerError},
		{Kind("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.kind.HTTPStatus())
		})
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, KindClient, KindOf(Client("bad request", cause)))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("process: %w", Validation("corrupt image", cause))))
	assert.Equal(t, KindDependency, KindOf(cause), "unclassified errors are dependency failures")
	assert.True(t, Is(Unauthorized("no identity", nil), KindUnauthorized))
	assert.False(t, Is(nil, KindDependency))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("table missing")
	err := Configuration("photo table not configured", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "photo table not configured: table missing", err.Error())
	assert.Equal(t, "only message", New(KindClient, "only message", nil).Error())
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "fileName is required", MessageOf(Client("fileName is required", nil), "fallback"))
	assert.Equal(t, "fallback", MessageOf(errors.New("raw"), "fallback"))
}
