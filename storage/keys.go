package storage

import (
	"fmt"
	"math/big"

	"github.com/tocipoco/DAO-Vote/crypto/ecc"
)

var networkKeyID = []byte("network")

// SetNetworkKeys stores the co-processor encryption keys.
func (s *Storage) SetNetworkKeys(publicKey ecc.Point, privateKey *big.Int) error {
	x, y := publicKey.Point()
	return s.setArtifact(networkKeyPrefix, networkKeyID, &NetworkKeys{
		X:          x,
		Y:          y,
		PrivateKey: privateKey,
	})
}

// NetworkKeys loads the co-processor encryption keys on the curve of the
// given point. Returns ErrNotFound if the keys do not exist.
func (s *Storage) NetworkKeys(curve ecc.Point) (ecc.Point, *big.Int, error) {
	nk := &NetworkKeys{}
	if err := s.getArtifact(networkKeyPrefix, networkKeyID, nk); err != nil {
		return nil, nil, err
	}
	pubKey := curve.SetPoint(nk.X, nk.Y)
	if !pubKey.IsOnCurve() {
		return nil, nil, fmt.Errorf("stored network key is not on the %s curve", curve.Type())
	}
	return pubKey, nk.PrivateKey, nil
}
