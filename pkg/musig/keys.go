package musig

import (
	"bytes"
	"encoding/hex"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
)

const (
	// PublicKeySize is the length of a compressed secp256k1 public key.
	PublicKeySize = 33
	// SecretKeySize is the length of a raw secp256k1 secret key.
	SecretKeySize = 32
)

// KeyPair holds a participant's long-term signing key.
type KeyPair struct {
	priv *btcec.PrivateKey
}

// GenerateKeyPair creates a fresh random keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate secret key")
	}
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromBytes restores a keypair from a raw 32-byte secret.
func KeyPairFromBytes(secret []byte) (*KeyPair, error) {
	if len(secret) != SecretKeySize {
		return nil, errors.Errorf("secret key must be %d bytes, got %d", SecretKeySize, len(secret))
	}
	priv, _ := btcec.PrivKeyFromBytes(secret)
	return &KeyPair{priv: priv}, nil
}

// KeyPairFromHex restores a keypair from a hex-encoded secret.
func KeyPairFromHex(s string) (*KeyPair, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode secret key")
	}
	return KeyPairFromBytes(raw)
}

// PublicKey returns the compressed public key.
func (k *KeyPair) PublicKey() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// Bytes returns the raw secret key.
func (k *KeyPair) Bytes() []byte {
	return k.priv.Serialize()
}

// ParsePublicKey validates a compressed public key encoding.
func ParsePublicKey(raw []byte) error {
	_, err := btcec.ParsePubKey(raw)
	return errors.Wrap(err, "parse public key")
}

// SortKeys returns a copy of keys sorted by their serialized form. This is the
// canonical ordering rule used by the gossip topology: every peer applies it
// to the same identity set and arrives at the same sequence.
func SortKeys(keys [][]byte) [][]byte {
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i], sorted[j]) < 0
	})
	return sorted
}
