package ptr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToAndDeref(t *testing.T) {
	p := To(0.0)
	assert.NotNil(t, p)
	assert.Equal(t, 0.0, Deref(p, 0.1))
	assert.Equal(t, 0.1, Deref[float64](nil, 0.1))
	assert.Equal(t, 3, Deref(To(3), 10))
}
