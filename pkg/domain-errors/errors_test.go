package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodes(t *testing.T) {
	t.Run("wrapped domain error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("load: %w", New(CodeNotFound, "event not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.Equal(t, "event not found", MessageOf(err))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("wrap preserves the cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := Wrap(cause, CodeInternal, "failed to save analysis")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("field errors travel with the error", func(t *testing.T) {
		err := WithFields(CodePreconditionFailed, "step 1 incomplete", []FieldError{{Field: "title", Message: "required"}})
		fields := FieldsOf(err)
		assert.Len(t, fields, 1)
		assert.Equal(t, "title", fields[0].Field)
	})
}
