package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "validation maps to bad request",
			err:  NewError("missing signature header").WithHint("Missing signature").Mark(ErrValidation),
			want: http.StatusBadRequest,
		},
		{
			name: "invalid signature maps to unauthorized",
			err:  NewError("signature mismatch").Mark(ErrInvalidSignature),
			want: http.StatusUnauthorized,
		},
		{
			name: "duplicate event is acknowledged",
			err:  NewError("event evt_1 already processed").Mark(ErrAlreadyProcessed),
			want: http.StatusOK,
		},
		{
			name: "not found survives wrapping",
			err:  fmt.Errorf("apply event: %w", NewError("subscription missing").Mark(ErrNotFound)),
			want: http.StatusNotFound,
		},
		{
			name: "database errors are server errors",
			err:  WithError(fmt.Errorf("connection refused")).Mark(ErrDatabase),
			want: http.StatusInternalServerError,
		},
		{
			name: "unmarked errors are server errors",
			err:  fmt.Errorf("boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestClassifiers(t *testing.T) {
	err := NewError("price gone").Mark(ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))

	dup := NewError("dup").Mark(ErrAlreadyProcessed)
	assert.True(t, IsAlreadyProcessed(dup))
	assert.False(t, IsNotFound(dup))
}
