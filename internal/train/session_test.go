package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	var s Session
	a, b := &Train{id: "a"}, &Train{id: "b"}

	assert.Nil(t, s.Active())
	s.SetActive(a)
	assert.Equal(t, "a", s.ActiveID())

	s.Release(b)
	assert.Same(t, a, s.Active())

	s.Release(a)
	assert.Nil(t, s.Active())
}
