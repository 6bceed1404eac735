package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullableString_EmptyIsNil(t *testing.T) {
	assert.Nil(t, nullableString(""))
}

func TestNullableString_NonEmptyPassesThrough(t *testing.T) {
	assert.Equal(t, "alice", nullableString("alice"))
}
