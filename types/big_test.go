package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/fxamacker/cbor/v2"
)

// field element wider than 64 bits, as found in curve coordinates
var testCoordinate, _ = new(big.Int).SetString("16540640123574156134436876038791482806971768689494387082833631921987005038935", 10)

type testPoint struct {
	X *BigInt `json:"x" cbor:"0,keyasint"`
	Y *BigInt `json:"y" cbor:"1,keyasint"`
}

func TestBigIntEncodings(t *testing.T) {
	c := qt.New(t)
	point := &testPoint{X: (*BigInt)(testCoordinate), Y: (*BigInt)(big.NewInt(1))}

	c.Run("json", func(c *qt.C) {
		data, err := json.Marshal(point)
		c.Assert(err, qt.IsNil)
		c.Assert(string(data), qt.Contains, testCoordinate.String())
		decoded := &testPoint{}
		c.Assert(json.Unmarshal(data, decoded), qt.IsNil)
		c.Assert(decoded.X.MathBigInt().Cmp(testCoordinate), qt.Equals, 0)
		c.Assert(decoded.Y.MathBigInt().Int64(), qt.Equals, int64(1))
	})

	c.Run("cbor", func(c *qt.C) {
		data, err := cbor.Marshal(point)
		c.Assert(err, qt.IsNil)
		decoded := &testPoint{}
		c.Assert(cbor.Unmarshal(data, decoded), qt.IsNil)
		c.Assert(decoded.X.MathBigInt().Cmp(testCoordinate), qt.Equals, 0)
		c.Assert(decoded.Y.MathBigInt().Int64(), qt.Equals, int64(1))
	})
}
