package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	req := require.New(t)

	// Given a sentinel wrapped with context
	err := fmt.Errorf("%w: conversation %s", ErrConversationNotFound, "c-1")

	// Then kind and code survive the wrapping
	req.Equal(NotFound, KindOf(err))
	req.Equal("conversation_not_found", CodeOf(err))
	req.True(Is(err, ErrConversationNotFound))
	req.Equal(http.StatusNotFound, HTTPStatus(err))
}

func TestKindOf_Foreign(t *testing.T) {
	req := require.New(t)
	err := fmt.Errorf("disk full")
	req.Equal(Internal, KindOf(err))
	req.Equal("internal", CodeOf(err))
	req.Equal(http.StatusInternalServerError, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{ErrEmptyContent, http.StatusBadRequest},
		{ErrNotAGroup, http.StatusBadRequest},
		{ErrStoryNotFound, http.StatusNotFound},
		{ErrNotAMember, http.StatusForbidden},
		{ErrExpired, http.StatusGone},
		{ErrConflict, http.StatusConflict},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(CodeOf(tt.err), func(t *testing.T) {
			require.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}
