package signing

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/pkg/musig"
)

var (
	// ErrInconsistentSignatures marks divergent final signatures across
	// participants: nonce reuse, a coordination bug, or a misbehaving party.
	ErrInconsistentSignatures = errors.New("signing: inconsistent final signatures")
	// ErrInvalidSignature marks a well-formed signature that fails
	// verification against the aggregated key and message.
	ErrInvalidSignature = errors.New("signing: final signature does not verify")
)

// VerifyConsensus confirms that every participant converged on one valid
// signature: all entries must be byte-identical and the signature must verify
// against the aggregated key and message. The accepted signature is returned.
func VerifyConsensus(finals map[int][]byte, aggregatedKey, message []byte) ([]byte, error) {
	if len(finals) == 0 {
		return nil, errors.New("signing: no final signatures to verify")
	}

	indexes := make([]int, 0, len(finals))
	for i := range finals {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	reference := finals[indexes[0]]
	for _, i := range indexes[1:] {
		if !bytes.Equal(reference, finals[i]) {
			return nil, errors.Wrapf(ErrInconsistentSignatures, "participant %d diverges from participant %d", i, indexes[0])
		}
	}

	if err := VerifyFinal(reference, aggregatedKey, message); err != nil {
		return nil, err
	}
	return reference, nil
}

// VerifyFinal checks one locally finalized signature against the aggregated
// key and message.
func VerifyFinal(signature, aggregatedKey, message []byte) error {
	if !musig.Verify(aggregatedKey, signature, message) {
		return ErrInvalidSignature
	}
	return nil
}
