package api

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Phone    string `json:"phone" validate:"required,bdphone"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{Phone: "01712345678", Password: "Secret123!"})
		assert.NoError(t, err)
	})

	t.Run("FieldErrorsUseJSONNames", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{Phone: "123", Email: "nope", Password: "short"})
		require.Error(t, err)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "must be a valid Bangladeshi mobile number", verr.Fields["phone"])
		assert.Equal(t, "must be a valid email address", verr.Fields["email"])
		assert.Equal(t, "must be at least 8 characters", verr.Fields["password"])
	})

	t.Run("Required", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "is required", verr.Fields["phone"])
		assert.Equal(t, "is required", verr.Fields["password"])
	})
}
