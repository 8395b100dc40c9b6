package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name     string `validate:"required,max=5"`
	Email    string `validate:"omitempty,email"`
	Priority string `validate:"omitempty,oneof=low medium high"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{Name: "ok"}))

	err := ValidateStruct(sample{Email: "nope", Priority: "urgent"})
	if assert.Error(t, err) {
		assert.Equal(t, "name is required, email must be a valid email, priority must be one of: low medium high", err.Error())
	}

	err = ValidateStruct(sample{Name: "toolong"})
	assert.EqualError(t, err, "name must be at most 5 characters")
}
