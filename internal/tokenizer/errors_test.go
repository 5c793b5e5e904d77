package tokenizer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("load: %w", errIO("gpt2", cause))

	assert.True(t, IsIO(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "gpt2")

	assert.True(t, IsNotFound(errNotFound("x", cause)))
	assert.True(t, IsValidation(NewError(KindValidation, "x", cause)))
	assert.False(t, IsValidation(cause))
}
