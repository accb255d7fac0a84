package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClasificacionDeErrores(t *testing.T) {
	serialization := fmt.Errorf("update: %w", &pgconn.PgError{Code: "40001"})
	deadlock := &pgconn.PgError{Code: "40P01"}
	unique := &pgconn.PgError{Code: "23505"}
	plain := errors.New("material no encontrado")

	assert.True(t, isRetryable(serialization))
	assert.True(t, isRetryable(deadlock))
	assert.False(t, isRetryable(unique))
	assert.False(t, isRetryable(plain))

	assert.True(t, isUniqueViolation(unique))
	assert.False(t, isUniqueViolation(deadlock))

	assert.True(t, isStoreError(serialization))
	assert.False(t, isStoreError(plain))
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	s := nullString("o-1")
	if assert.NotNil(t, s) {
		assert.Equal(t, "o-1", *s)
	}
	assert.Equal(t, "", fromNull(nil))
	assert.Equal(t, "o-1", fromNull(s))
}
