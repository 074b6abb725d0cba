// Package ecc defines the elliptic curve point abstraction used by the
// encryption layer of the co-processor.
package ecc

import "math/big"

// Point is a mutable elliptic curve group element. Operations store their
// result in the receiver.
type Point interface {
	// New returns a new identity point on the same curve.
	New() Point
	// Order returns the order of the prime subgroup.
	Order() *big.Int
	Add(a, b Point)
	SafeAdd(a, b Point)
	ScalarMult(a Point, scalar *big.Int)
	ScalarBaseMult(scalar *big.Int)
	Neg(a Point)
	Set(a Point)
	SetZero()
	SetGenerator()
	Equal(a Point) bool
	IsOnCurve() bool
	// Marshal returns the compressed point encoding.
	Marshal() []byte
	Unmarshal(buf []byte) error
	MarshalJSON() ([]byte, error)
	UnmarshalJSON(buf []byte) error
	MarshalCBOR() ([]byte, error)
	UnmarshalCBOR(buf []byte) error
	// Point returns the affine coordinates.
	Point() (*big.Int, *big.Int)
	// SetPoint returns a new point with the given affine coordinates.
	SetPoint(x, y *big.Int) Point
	String() string
	Type() string
}
