package elgamal

import (
	"fmt"
	"math"
	"sync"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
)

// ErrNoDiscreteLog is returned when the message is outside the searched range.
var ErrNoDiscreteLog = fmt.Errorf("failed to compute discrete logarithm")

var (
	dlogTables   = make(map[string]*DiscreteLog)
	dlogTablesMu sync.Mutex
)

// DiscreteLog solves M = x*G for x in [0, max] with baby-step giant-step.
// The baby-step table is computed once and the value is safe for concurrent
// use.
type DiscreteLog struct {
	max   uint64
	step  uint64
	baby  map[string]uint64
	giant ecc.Point
}

// DiscreteLogTable returns the shared table for the curve of the given point
// and the given bound, computing it on first use.
func DiscreteLogTable(curve ecc.Point, maxMessage uint64) *DiscreteLog {
	key := fmt.Sprintf("%s/%d", curve.Type(), maxMessage)
	dlogTablesMu.Lock()
	defer dlogTablesMu.Unlock()
	if t, ok := dlogTables[key]; ok {
		return t
	}
	t := NewDiscreteLog(curve, maxMessage)
	dlogTables[key] = t
	return t
}

// NewDiscreteLog precomputes the baby steps j*G for j in [0, sqrt(max)].
func NewDiscreteLog(curve ecc.Point, maxMessage uint64) *DiscreteLog {
	step := uint64(math.Sqrt(float64(maxMessage))) + 1
	dl := &DiscreteLog{
		max:  maxMessage,
		step: step,
		baby: make(map[string]uint64, step),
	}
	g := curve.New()
	g.SetGenerator()
	acc := curve.New()
	for j := uint64(0); j < step; j++ {
		dl.baby[string(acc.Marshal())] = j
		acc.Add(acc, g)
	}
	// acc is now step*G
	dl.giant = curve.New()
	dl.giant.Neg(acc)
	return dl
}

// Max returns the largest message the table can recover.
func (dl *DiscreteLog) Max() uint64 {
	return dl.max
}

// Solve returns x such that M = x*G.
func (dl *DiscreteLog) Solve(m ecc.Point) (uint64, error) {
	giantStep := m.New()
	giantStep.Set(m)
	for i := uint64(0); i <= dl.step; i++ {
		if j, found := dl.baby[string(giantStep.Marshal())]; found {
			x := i*dl.step + j
			if x > dl.max {
				break
			}
			return x, nil
		}
		giantStep.Add(giantStep, dl.giant)
	}
	return 0, fmt.Errorf("%w: message not in [0, %d]", ErrNoDiscreteLog, dl.max)
}
