package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackIsCapturedForServerErrorsOnly(t *testing.T) {
	for _, e := range []*Error{
		Unauthenticated("You are not logged in! Please log in to get access."),
		Forbidden("You do not have permission to perform this action"),
		NotFound("No document found with that ID"),
		Cast("id", "abc"),
		New(http.StatusTooManyRequests, "slow down"),
	} {
		assert.Empty(t, e.Stack, e.Message)
	}

	assert.NotEmpty(t, Internal("boom", errors.New("db down")).Stack)
	assert.NotEmpty(t, New(http.StatusBadGateway, "upstream").Stack)
}

func TestStatusTextAndKinds(t *testing.T) {
	assert.Equal(t, "fail", NotFound("x").StatusText())
	assert.Equal(t, "error", Internal("x", nil).StatusText())
	assert.Equal(t, KindUnauthenticated, New(http.StatusUnauthorized, "x").Kind)
	assert.Equal(t, "Invalid id: abc", Cast("id", "abc").Message)
	assert.Equal(t, "Duplicate field value entered: a@b.c", Duplicate("a@b.c").Message)
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	cause := errors.New("no rows")
	wrapped := fmt.Errorf("load tour: %w", Wrap(cause, http.StatusNotFound, "No tour found with that ID"))

	ae, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(cause, KindNotFound))
}
