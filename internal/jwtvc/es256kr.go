package jwtvc

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pixelgenesis/backend/internal/eth"
)

// AlgES256KR - secp256k1 подпись с recovery id (r ++ s ++ v), как в did-jwt для did:ethr.
// Проверка не требует публичного ключа: ключ восстанавливается из подписи
// и сравнивается с адресом из DID.
const AlgES256KR = "ES256K-R"

var ErrSignerMismatch = errors.New("recovered signer does not match expected address")

// SigningMethodES256KR implements jwt.SigningMethod.
//
// Sign принимает *btcec.PrivateKey.
// Verify принимает ожидаемый адрес (string) или *btcec.PublicKey.
type SigningMethodES256KR struct{}

var SigningMethodRecoverable = &SigningMethodES256KR{}

func init() {
	jwt.RegisterSigningMethod(AlgES256KR, func() jwt.SigningMethod {
		return SigningMethodRecoverable
	})
}

func (m *SigningMethodES256KR) Alg() string {
	return AlgES256KR
}

func (m *SigningMethodES256KR) Sign(signingString string, key interface{}) ([]byte, error) {
	priv, ok := key.(*btcec.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}

	hash := sha256.Sum256([]byte(signingString))
	return eth.Sign(priv, hash[:])
}

func (m *SigningMethodES256KR) Verify(signingString string, sig []byte, key interface{}) error {
	hash := sha256.Sum256([]byte(signingString))

	pub, err := eth.RecoverPublicKey(hash[:], sig)
	if err != nil {
		return err
	}

	switch k := key.(type) {
	case string:
		if !eth.SameAddress(eth.PubkeyToAddress(pub), k) {
			return ErrSignerMismatch
		}
	case *btcec.PublicKey:
		if !k.IsEqual(pub) {
			return ErrSignerMismatch
		}
	default:
		return jwt.ErrInvalidKeyType
	}
	return nil
}
