// Package identity manages participant key pairs. An identity is the hex
// encoding of an Ed25519 public key; transactions are authenticated with
// Schnorr signatures over that key.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"

	"github.com/lox/fairjack/internal/game"
)

var suite = suites.MustFind("Ed25519")

// ErrBadSignature is returned when a signature does not verify.
var ErrBadSignature = errors.New("bad signature")

// KeyPair is a participant's signing key.
type KeyPair struct {
	private kyber.Scalar
	public  kyber.Point
}

// Generate creates a fresh random key pair.
func Generate() *KeyPair {
	private := suite.Scalar().Pick(suite.RandomStream())
	return fromScalar(private)
}

// FromSeed derives a key pair deterministically from seed. Intended for
// demos and tests.
func FromSeed(seed []byte) *KeyPair {
	private := suite.Scalar().Pick(suite.XOF(seed))
	return fromScalar(private)
}

// Parse decodes a hex private key produced by KeyPair.PrivateHex.
func Parse(privateHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(privateHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	private := suite.Scalar()
	if err := private.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal private key: %w", err)
	}
	return fromScalar(private), nil
}

func fromScalar(private kyber.Scalar) *KeyPair {
	return &KeyPair{
		private: private,
		public:  suite.Point().Mul(private, nil),
	}
}

// Identity returns the public identity of the key pair.
func (k *KeyPair) Identity() game.Identity {
	raw, err := k.public.MarshalBinary()
	if err != nil {
		// Ed25519 points always marshal.
		panic(err)
	}
	return game.Identity(hex.EncodeToString(raw))
}

// PrivateHex returns the hex encoded private scalar.
func (k *KeyPair) PrivateHex() string {
	raw, err := k.private.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(raw)
}

// Sign produces a Schnorr signature over msg.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	sig, err := schnorr.Sign(suite, k.private, msg)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

// Validate checks id is the encoding of a public key.
func Validate(id game.Identity) error {
	_, err := publicKey(id)
	return err
}

// Verify checks that sig is a valid signature over msg by id.
func Verify(id game.Identity, msg, sig []byte) error {
	public, err := publicKey(id)
	if err != nil {
		return err
	}
	if err := schnorr.Verify(suite, public, msg, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

func publicKey(id game.Identity) (kyber.Point, error) {
	raw, err := hex.DecodeString(string(id))
	if err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	public := suite.Point()
	if err := public.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return public, nil
}
