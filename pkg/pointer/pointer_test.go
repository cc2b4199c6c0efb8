package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBool(t *testing.T) {
	assert.True(t, *Bool(true))
	assert.False(t, *BoolOrDefault(nil, false))
	assert.True(t, *BoolOrDefault(nil, true))
	assert.False(t, *BoolOrDefault(Bool(false), true))
}

func TestUint8(t *testing.T) {
	assert.EqualValues(t, 254, *Uint8(254))
}
