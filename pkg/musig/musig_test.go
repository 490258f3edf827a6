package musig

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSeed(t *testing.T) [SeedSize]byte {
	var seed [SeedSize]byte
	_, err := io.ReadFull(rand.Reader, seed[:])
	require.Nil(t, err)
	return seed
}

// signAll runs the complete two-round exchange for every participant in
// memory and returns the final signatures, one per participant.
func signAll(t *testing.T, pairs []*KeyPair, message []byte) ([][]byte, *KeyAggContext) {
	keys := make([][]byte, len(pairs))
	for i, kp := range pairs {
		keys[i] = kp.PublicKey()
	}

	ctx, err := AggregateKeys(SortKeys(keys))
	require.Nil(t, err)

	firsts := make([]*FirstRound, len(pairs))
	nonces := make([][]byte, len(pairs))
	for i, kp := range pairs {
		index := ctx.IndexOf(kp.PublicKey())
		require.True(t, index >= 0)

		firsts[i], err = NewFirstRound(ctx, testSeed(t), index, kp, message)
		require.Nil(t, err)
		nonces[i] = firsts[i].PubNonce()
	}

	seconds := make([]*SecondRound, len(pairs))
	for i := range pairs {
		for j := range pairs {
			if i == j {
				continue
			}
			require.Nil(t, firsts[i].ReceiveNonce(nonces[j]))
		}
		seconds[i], err = firsts[i].Finalize()
		require.Nil(t, err)
	}

	finals := make([][]byte, len(pairs))
	for i := range pairs {
		for j := range pairs {
			if i == j {
				continue
			}
			require.Nil(t, seconds[i].ReceivePartial(seconds[j].PartialSignature()))
		}
		finals[i], err = seconds[i].Finalize()
		require.Nil(t, err)
	}

	return finals, ctx
}

func TestThreePartySigning(t *testing.T) {
	pairs := make([]*KeyPair, 3)
	for i := range pairs {
		kp, err := GenerateKeyPair()
		require.Nil(t, err)
		pairs[i] = kp
	}

	message := []byte("Hello, MuSig2!")
	finals, ctx := signAll(t, pairs, message)

	for _, final := range finals {
		assert.Equal(t, finals[0], final)
		assert.Len(t, final, SignatureSize)
		assert.True(t, Verify(ctx.AggregatedKey(), final, message))
	}
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	pairs := make([]*KeyPair, 2)
	for i := range pairs {
		kp, err := GenerateKeyPair()
		require.Nil(t, err)
		pairs[i] = kp
	}

	finals, ctx := signAll(t, pairs, []byte("signed message"))
	assert.False(t, Verify(ctx.AggregatedKey(), finals[0], []byte("another message")))
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	pairs := make([]*KeyPair, 2)
	for i := range pairs {
		kp, err := GenerateKeyPair()
		require.Nil(t, err)
		pairs[i] = kp
	}

	message := []byte("signed message")
	finals, ctx := signAll(t, pairs, message)

	tampered := append([]byte(nil), finals[0]...)
	tampered[SignatureSize-1] ^= 0x01
	assert.False(t, Verify(ctx.AggregatedKey(), tampered, message))
}

func TestCorruptedNonceBreaksSigning(t *testing.T) {
	a, err := GenerateKeyPair()
	require.Nil(t, err)
	b, err := GenerateKeyPair()
	require.Nil(t, err)

	ctx, err := AggregateKeys(SortKeys([][]byte{a.PublicKey(), b.PublicKey()}))
	require.Nil(t, err)

	indexA := ctx.IndexOf(a.PublicKey())
	first, err := NewFirstRound(ctx, testSeed(t), indexA, a, []byte("msg"))
	require.Nil(t, err)

	peer, err := NewFirstRound(ctx, testSeed(t), ctx.IndexOf(b.PublicKey()), b, []byte("msg"))
	require.Nil(t, err)

	// Flip the leading byte of the peer's nonce so the encoded points are
	// no longer on the curve. The exchange must fail before it yields a
	// partial signature.
	tampered := append([]byte(nil), peer.PubNonce()...)
	tampered[0] ^= 0xFF

	errRecv := first.ReceiveNonce(tampered)
	var errFin error
	if errRecv == nil {
		_, errFin = first.Finalize()
	}
	assert.True(t, errRecv != nil || errFin != nil)
}

func TestAggregateKeysRejectsEmptySet(t *testing.T) {
	_, err := AggregateKeys(nil)
	assert.Equal(t, ErrNoKeys, err)
}

func TestAggregateKeysRejectsDuplicate(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.Nil(t, err)

	_, err = AggregateKeys([][]byte{kp.PublicKey(), kp.PublicKey()})
	assert.Equal(t, ErrDuplicateKey, err)
}

func TestAggregateKeysOrderSignificant(t *testing.T) {
	a, err := GenerateKeyPair()
	require.Nil(t, err)
	b, err := GenerateKeyPair()
	require.Nil(t, err)

	ab, err := AggregateKeys([][]byte{a.PublicKey(), b.PublicKey()})
	require.Nil(t, err)
	ba, err := AggregateKeys([][]byte{b.PublicKey(), a.PublicKey()})
	require.Nil(t, err)

	assert.NotEqual(t, ab.AggregatedKey(), ba.AggregatedKey())
}

func TestKeyAggContextRoundTrip(t *testing.T) {
	keys := make([][]byte, 3)
	for i := range keys {
		kp, err := GenerateKeyPair()
		require.Nil(t, err)
		keys[i] = kp.PublicKey()
	}

	ctx, err := AggregateKeys(keys)
	require.Nil(t, err)

	parsed, err := ParseKeyAggContext(ctx.Bytes())
	require.Nil(t, err)

	assert.Equal(t, ctx.AggregatedKey(), parsed.AggregatedKey())
	assert.Equal(t, ctx.Bytes(), parsed.Bytes())
}

func TestParseKeyAggContextRejectsTruncated(t *testing.T) {
	_, err := ParseKeyAggContext(make([]byte, PublicKeySize+1))
	assert.NotNil(t, err)
}

func TestSortKeysDeterministic(t *testing.T) {
	keys := make([][]byte, 4)
	for i := range keys {
		kp, err := GenerateKeyPair()
		require.Nil(t, err)
		keys[i] = kp.PublicKey()
	}

	sorted := SortKeys(keys)
	reversed := make([][]byte, len(keys))
	for i, k := range keys {
		reversed[len(keys)-1-i] = k
	}

	assert.Equal(t, sorted, SortKeys(reversed))
}

func TestNewFirstRoundRejectsIndexMismatch(t *testing.T) {
	a, err := GenerateKeyPair()
	require.Nil(t, err)
	b, err := GenerateKeyPair()
	require.Nil(t, err)

	ctx, err := AggregateKeys([][]byte{a.PublicKey(), b.PublicKey()})
	require.Nil(t, err)

	_, err = NewFirstRound(ctx, testSeed(t), 1, a, []byte("msg"))
	assert.NotNil(t, err)

	_, err = NewFirstRound(ctx, testSeed(t), 2, a, []byte("msg"))
	assert.NotNil(t, err)
}

func TestKeyPairFromHexRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.Nil(t, err)

	restored, err := KeyPairFromBytes(kp.Bytes())
	require.Nil(t, err)
	assert.Equal(t, kp.PublicKey(), restored.PublicKey())

	_, err = KeyPairFromBytes(make([]byte, 16))
	assert.NotNil(t, err)
}
