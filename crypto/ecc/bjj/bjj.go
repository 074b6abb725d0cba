// Package bjj implements ecc.Point over the BabyJubJub twisted Edwards curve
// using the iden3 implementation.
package bjj

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/fxamacker/cbor/v2"
	babyjubjub "github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/constants"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
	"github.com/tocipoco/DAO-Vote/types"
)

const CurveType = "bjj_iden3"

// BJJ is the affine representation of the BabyJubJub group element.
type BJJ struct {
	inner *babyjubjub.Point
	lock  sync.Mutex
}

// New creates a new BJJ point (identity element by default).
func New() ecc.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (g *BJJ) New() ecc.Point {
	return New()
}

func (g *BJJ) Order() *big.Int {
	return babyjubjub.SubOrder
}

func (g *BJJ) Add(a, b ecc.Point) {
	g.inner = babyjubjub.NewPoint().Projective().
		Add(a.(*BJJ).inner.Projective(), b.(*BJJ).inner.Projective()).
		Affine()
}

func (g *BJJ) SafeAdd(a, b ecc.Point) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.Add(a, b)
}

func (g *BJJ) ScalarMult(a ecc.Point, scalar *big.Int) {
	s := new(big.Int).Mod(scalar, babyjubjub.SubOrder)
	g.inner = babyjubjub.NewPoint().Mul(s, a.(*BJJ).inner)
}

func (g *BJJ) ScalarBaseMult(scalar *big.Int) {
	s := new(big.Int).Mod(scalar, babyjubjub.SubOrder)
	g.inner = babyjubjub.NewPoint().Mul(s, babyjubjub.B8)
}

// Neg sets the receiver to -a, which on a twisted Edwards curve is (-x, y).
func (g *BJJ) Neg(a ecc.Point) {
	x, y := a.Point()
	nx := new(big.Int).Neg(x)
	nx.Mod(nx, constants.Q)
	g.inner = &babyjubjub.Point{X: nx, Y: new(big.Int).Set(y)}
}

func (g *BJJ) Set(a ecc.Point) {
	x, y := a.Point()
	g.inner = &babyjubjub.Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}
}

func (g *BJJ) SetZero() {
	g.inner = babyjubjub.NewPoint()
}

func (g *BJJ) SetGenerator() {
	g.inner = &babyjubjub.Point{
		X: new(big.Int).Set(babyjubjub.B8.X),
		Y: new(big.Int).Set(babyjubjub.B8.Y),
	}
}

func (g *BJJ) Equal(a ecc.Point) bool {
	x, y := a.Point()
	return g.inner.X.Cmp(x) == 0 && g.inner.Y.Cmp(y) == 0
}

func (g *BJJ) IsOnCurve() bool {
	return g.inner.InCurve()
}

func (g *BJJ) Marshal() []byte {
	b := g.inner.Compress()
	return b[:]
}

func (g *BJJ) Unmarshal(buf []byte) error {
	if len(buf) != 32 {
		return fmt.Errorf("invalid compressed point length %d", len(buf))
	}
	b32 := [32]byte{}
	copy(b32[:], buf)
	p, err := babyjubjub.NewPoint().Decompress(b32)
	if err != nil {
		return err
	}
	g.inner = p
	return nil
}

// MarshalJSON serializes the elliptic curve element into a JSON byte slice.
func (g *BJJ) MarshalJSON() ([]byte, error) {
	return json.Marshal([]types.BigInt{types.BigInt(*g.inner.X), types.BigInt(*g.inner.Y)})
}

// UnmarshalJSON deserializes the elliptic curve element from a JSON byte slice.
func (g *BJJ) UnmarshalJSON(buf []byte) error {
	var coords []types.BigInt
	if err := json.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	return g.setChecked(coords[0].MathBigInt(), coords[1].MathBigInt())
}

func (g *BJJ) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal([]*big.Int{g.inner.X, g.inner.Y})
}

func (g *BJJ) UnmarshalCBOR(buf []byte) error {
	var coords []*big.Int
	if err := cbor.Unmarshal(buf, &coords); err != nil {
		return err
	}
	if len(coords) != 2 {
		return fmt.Errorf("expected 2 coordinates, got %d", len(coords))
	}
	return g.setChecked(coords[0], coords[1])
}

func (g *BJJ) setChecked(x, y *big.Int) error {
	p := &babyjubjub.Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}
	if !p.InCurve() {
		return fmt.Errorf("point (%s,%s) is not on the curve", x, y)
	}
	g.inner = p
	return nil
}

func (g *BJJ) Point() (*big.Int, *big.Int) {
	return g.inner.X, g.inner.Y
}

func (g *BJJ) SetPoint(x, y *big.Int) ecc.Point {
	return &BJJ{inner: &babyjubjub.Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}}
}

func (g *BJJ) String() string {
	return fmt.Sprintf("%s,%s", g.inner.X.String(), g.inner.Y.String())
}

func (g *BJJ) Type() string {
	return CurveType
}
