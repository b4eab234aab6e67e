package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextLocalID_Monotonic(t *testing.T) {
	prev := NextLocalID()
	for i := 0; i < 1000; i++ {
		id := NextLocalID()
		assert.Greater(t, id, prev)
		prev = id
	}
}
