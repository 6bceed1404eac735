package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: sqlStateUniqueViolat}, expected: true},
		{name: "deadlock is not a unique violation", err: &pgconn.PgError{Code: sqlStateDeadlock}, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
		{name: "nil error", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsTransientPgErr(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "deadlock", err: &pgconn.PgError{Code: sqlStateDeadlock}, expected: true},
		{name: "serialization failure", err: &pgconn.PgError{Code: sqlStateSerialFail}, expected: true},
		{name: "unique violation is not transient", err: &pgconn.PgError{Code: sqlStateUniqueViolat}, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isTransientPgErr(tt.err))
		})
	}
}
