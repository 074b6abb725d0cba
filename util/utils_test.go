package util

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRandomBytes(t *testing.T) {
	c := qt.New(t)
	a, b := RandomBytes(32), RandomBytes(32)
	c.Assert(a, qt.HasLen, 32)
	c.Assert(a, qt.Not(qt.DeepEquals), b)
}

func TestRandomInt(t *testing.T) {
	c := qt.New(t)
	seen := map[int]bool{}
	for range 200 {
		n := RandomInt(0, 2)
		c.Assert(n >= 0 && n < 2, qt.IsTrue, qt.Commentf("got %d", n))
		seen[n] = true
	}
	c.Assert(seen, qt.HasLen, 2)
}
