package musig

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/pkg/errors"
)

var (
	// ErrNoKeys is returned when aggregation is attempted over an empty set.
	ErrNoKeys = errors.New("musig: empty public key set")
	// ErrDuplicateKey is returned when the same identity appears twice in the
	// aggregation input.
	ErrDuplicateKey = errors.New("musig: duplicate public key")
)

// KeyAggContext is the aggregation context derived from the full ordered list
// of participant keys. All participants must build it from the identical
// ordered list; the byte form crossing the wire is the concatenation of the
// compressed keys in that order.
type KeyAggContext struct {
	keys []*btcec.PublicKey
	agg  *btcec.PublicKey
}

// AggregateKeys derives the aggregation context from orderedKeys. The order is
// significant: a different order yields a different aggregated key.
func AggregateKeys(orderedKeys [][]byte) (*KeyAggContext, error) {
	if len(orderedKeys) == 0 {
		return nil, ErrNoKeys
	}

	seen := make(map[string]struct{}, len(orderedKeys))
	keys := make([]*btcec.PublicKey, 0, len(orderedKeys))
	for _, raw := range orderedKeys {
		if _, ok := seen[string(raw)]; ok {
			return nil, ErrDuplicateKey
		}
		seen[string(raw)] = struct{}{}

		pub, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parse public key")
		}
		keys = append(keys, pub)
	}

	agg, _, _, err := musig2.AggregateKeys(keys, false)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate keys")
	}

	return &KeyAggContext{keys: keys, agg: agg.FinalKey}, nil
}

// ParseKeyAggContext rebuilds a context from its byte form.
func ParseKeyAggContext(raw []byte) (*KeyAggContext, error) {
	if len(raw) == 0 || len(raw)%PublicKeySize != 0 {
		return nil, errors.Errorf("context must be a multiple of %d bytes, got %d", PublicKeySize, len(raw))
	}

	orderedKeys := make([][]byte, 0, len(raw)/PublicKeySize)
	for off := 0; off < len(raw); off += PublicKeySize {
		orderedKeys = append(orderedKeys, raw[off:off+PublicKeySize])
	}
	return AggregateKeys(orderedKeys)
}

// Bytes serializes the context for the wire.
func (c *KeyAggContext) Bytes() []byte {
	out := make([]byte, 0, len(c.keys)*PublicKeySize)
	for _, k := range c.keys {
		out = append(out, k.SerializeCompressed()...)
	}
	return out
}

// AggregatedKey returns the compressed aggregated public key the group
// controls.
func (c *KeyAggContext) AggregatedKey() []byte {
	return c.agg.SerializeCompressed()
}

// NumSigners returns the number of participants in the context.
func (c *KeyAggContext) NumSigners() int {
	return len(c.keys)
}

// IndexOf returns the position of pub in the ordered key list, or -1.
func (c *KeyAggContext) IndexOf(pub []byte) int {
	for i, k := range c.keys {
		if bytes.Equal(k.SerializeCompressed(), pub) {
			return i
		}
	}
	return -1
}
