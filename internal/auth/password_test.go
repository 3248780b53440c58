package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/course-tracker/internal/apperr"
)

func TestCheckPassword(t *testing.T) {
	assert.NoError(t, checkPassword("t", "correct horse"))
	assert.NoError(t, checkPassword("t", "пароль12"))
	assert.ErrorIs(t, checkPassword("t", "short"), apperr.ErrValidation)
	assert.ErrorIs(t, checkPassword("t", strings.Repeat("x", 73)), apperr.ErrValidation)
}

func TestNew_CostRange(t *testing.T) {
	_, err := New(nil, nil, bcrypt.MaxCost+1, nil)
	require.Error(t, err)

	s, err := New(nil, nil, bcrypt.MinCost, nil)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, s.cost)
}

func TestOptional(t *testing.T) {
	assert.Nil(t, optional("  "))
	require.NotNil(t, optional(" Ada "))
	assert.Equal(t, "Ada", *optional(" Ada "))
}
