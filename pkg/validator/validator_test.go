package validator_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("all rules pass", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.RequiredString("title", "Callback"),
			validator.MaxLenString("title", "Callback", 10),
			validator.RequiredTime("date", time.Now()),
			validator.RequiredUUID("id", uuid.New()),
			validator.InList("kind", "print", []string{"print", "movie"}),
			validator.RequiredSlice("ids", []int{1}),
			validator.MaxLenSlice("ids", []int{1, 2}, 2),
			validator.NonNegative("amount", 0),
		)
		assert.NoError(t, err)
	})

	t.Run("failures are collected", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.RequiredString("title", "   "),
			validator.RequiredString("location", ""),
			validator.RequiredTime("date", time.Time{}),
			validator.MaxLenString("description", "abcdef", 3),
		)
		require.Error(t, err)
		require.True(t, validator.IsValidationError(err))

		ve := validator.ExtractValidationErrors(fmt.Errorf("wrapped: %w", err))
		require.Len(t, ve, 4)
		assert.Equal(t, []string{"title", "location", "date", "description"}, ve.Fields())
		assert.True(t, ve.Has("date"))
		assert.False(t, ve.Has("audition_type"))
		assert.Contains(t, err.Error(), "title: field is required")
	})

	t.Run("when skips rule", func(t *testing.T) {
		t.Parallel()

		err := validator.Apply(
			validator.When(false, validator.InList("kind", "bogus", []string{"print"})),
			validator.When(true, validator.NonNegative("amount", -1)),
		)
		ve := validator.ExtractValidationErrors(err)
		require.Len(t, ve, 1)
		assert.Equal(t, "amount", ve[0].Field)
	})

	t.Run("non validation error", func(t *testing.T) {
		t.Parallel()

		assert.Nil(t, validator.ExtractValidationErrors(fmt.Errorf("plain")))
		assert.False(t, validator.IsValidationError(nil))
	})
}
