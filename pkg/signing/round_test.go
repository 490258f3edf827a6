package signing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/musig2-node/pkg/musig"
)

// newRounds prepares one Round per participant over a shared aggregation
// context.
func newRounds(t *testing.T, n int, message []byte) []*Round {
	pairs := make([]*musig.KeyPair, n)
	keys := make([][]byte, n)
	for i := range pairs {
		kp, err := musig.GenerateKeyPair()
		require.Nil(t, err)
		pairs[i] = kp
		keys[i] = kp.PublicKey()
	}

	ctx, err := musig.AggregateKeys(keys)
	require.Nil(t, err)

	rounds := make([]*Round, n)
	for i, kp := range pairs {
		rounds[i], err = NewRound(ctx, kp, i, message)
		require.Nil(t, err)
	}
	return rounds
}

func startAll(t *testing.T, rounds []*Round) [][]byte {
	nonces := make([][]byte, len(rounds))
	for i, r := range rounds {
		nonce, err := r.Start()
		require.Nil(t, err)
		require.Len(t, nonce, musig.NonceSize)
		nonces[i] = nonce
	}
	return nonces
}

func TestThreePartyRoundFlow(t *testing.T) {
	message := []byte("Hello, MuSig2!")
	rounds := newRounds(t, 3, message)
	nonces := startAll(t, rounds)

	partials := make([][]byte, len(rounds))
	for i, r := range rounds {
		require.Equal(t, i, r.Index())
		for j, nonce := range nonces {
			if i == j {
				continue
			}
			require.Nil(t, r.AddNonce(j, nonce))
		}
		require.Equal(t, NoncesCollected, r.Status())

		partial, err := r.FinalizePartial()
		require.Nil(t, err)
		require.Len(t, partial, musig.PartialSignatureSize)
		partials[i] = partial
	}

	finals := make(map[int][]byte, len(rounds))
	for i, r := range rounds {
		for j, partial := range partials {
			if i == j {
				continue
			}
			require.Nil(t, r.AddPartial(j, partial))
		}
		require.True(t, r.PartialsComplete())

		final, err := r.FinalizeSignature()
		require.Nil(t, err)
		assert.Equal(t, Finalized, r.Status())
		finals[i] = final

		got, err := r.FinalSignature()
		require.Nil(t, err)
		assert.Equal(t, final, got)
	}

	for i := range rounds {
		assert.Equal(t, finals[0], finals[i])
	}
}

func TestStartIsSingleShot(t *testing.T) {
	rounds := newRounds(t, 2, []byte("msg"))

	_, err := rounds[0].Start()
	require.Nil(t, err)

	_, err = rounds[0].Start()
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestNonceBeforeStartRejected(t *testing.T) {
	rounds := newRounds(t, 2, []byte("msg"))
	nonces := startAll(t, rounds[1:])

	err := rounds[0].AddNonce(1, nonces[0])
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestPartialFinalizeRequiresNonceBarrier(t *testing.T) {
	rounds := newRounds(t, 3, []byte("msg"))
	nonces := startAll(t, rounds)

	// Only one of the two required peer nonces is in.
	require.Nil(t, rounds[0].AddNonce(1, nonces[1]))
	require.Equal(t, NonceReady, rounds[0].Status())

	_, err := rounds[0].FinalizePartial()
	assert.True(t, errors.Is(err, ErrMissingContributions))
}

func TestSenderChecks(t *testing.T) {
	rounds := newRounds(t, 3, []byte("msg"))
	nonces := startAll(t, rounds)

	err := rounds[0].AddNonce(7, nonces[1])
	assert.True(t, errors.Is(err, ErrUnknownParticipant))

	err = rounds[0].AddNonce(0, nonces[0])
	assert.True(t, errors.Is(err, ErrOwnContribution))

	require.Nil(t, rounds[0].AddNonce(1, nonces[1]))
	err = rounds[0].AddNonce(1, nonces[1])
	assert.True(t, errors.Is(err, ErrDuplicateContribution))
}

func TestMalformedNonceRejected(t *testing.T) {
	rounds := newRounds(t, 2, []byte("msg"))
	startAll(t, rounds)

	err := rounds[0].AddNonce(1, []byte("not a nonce"))
	assert.True(t, errors.Is(err, ErrInvalidNonceFormat))
}

func TestCorruptedNonceBreaksRound(t *testing.T) {
	rounds := newRounds(t, 3, []byte("msg"))
	nonces := startAll(t, rounds)

	// A nonce of the right length but with a flipped leading byte no longer
	// encodes valid curve points. The round must surface an error somewhere
	// before a signature comes out, never a silently different partial.
	tampered := append([]byte(nil), nonces[1]...)
	tampered[0] ^= 0xFF

	errAdd := rounds[0].AddNonce(1, tampered)
	var errFin error
	if errAdd == nil {
		require.Nil(t, rounds[0].AddNonce(2, nonces[2]))
		_, errFin = rounds[0].FinalizePartial()
	}
	assert.True(t, errAdd != nil || errFin != nil)
}

func TestPartialBeforeNonceBarrierRejected(t *testing.T) {
	rounds := newRounds(t, 3, []byte("msg"))
	startAll(t, rounds)

	err := rounds[0].AddPartial(1, make([]byte, musig.PartialSignatureSize))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestSignatureFinalizeRequiresAllPartials(t *testing.T) {
	rounds := newRounds(t, 3, []byte("msg"))
	nonces := startAll(t, rounds)

	partials := make([][]byte, len(rounds))
	for i, r := range rounds {
		for j, nonce := range nonces {
			if i == j {
				continue
			}
			require.Nil(t, r.AddNonce(j, nonce))
		}
		partial, err := r.FinalizePartial()
		require.Nil(t, err)
		partials[i] = partial
	}

	// Deliver one of the two required peer partials.
	require.Nil(t, rounds[0].AddPartial(1, partials[1]))
	assert.False(t, rounds[0].PartialsComplete())

	_, err := rounds[0].FinalizeSignature()
	assert.True(t, errors.Is(err, ErrMissingContributions))
}

func TestNewRoundRejectsBadIndex(t *testing.T) {
	kp, err := musig.GenerateKeyPair()
	require.Nil(t, err)

	ctx, err := musig.AggregateKeys([][]byte{kp.PublicKey()})
	require.Nil(t, err)

	_, err = NewRound(ctx, kp, -1, []byte("msg"))
	assert.True(t, errors.Is(err, ErrUnknownParticipant))

	_, err = NewRound(ctx, kp, 1, []byte("msg"))
	assert.True(t, errors.Is(err, ErrUnknownParticipant))
}
