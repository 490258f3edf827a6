package musig

import (
	"bytes"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/pkg/errors"
)

const (
	// SeedSize is the length of the per-round nonce seed.
	SeedSize = 32
	// NonceSize is the length of a serialized public nonce.
	NonceSize = musig2.PubNonceSize
	// PartialSignatureSize is the length of a serialized partial signature.
	PartialSignatureSize = 32
	// SignatureSize is the length of a final Schnorr signature.
	SignatureSize = 64
)

// MessageDigest is the 32-byte digest signing and verification operate on.
func MessageDigest(message []byte) [32]byte {
	return sha256.Sum256(message)
}

// FirstRound holds a participant's private round-one state. The seed must be
// fresh and unpredictable per signing attempt: reusing it across two attempts
// voids unforgeability.
type FirstRound struct {
	session *musig2.Session
	digest  [32]byte
	haveAll bool
}

// NewFirstRound derives the round-one secret state and public nonce for the
// participant at signerIndex in ctx.
func NewFirstRound(ctx *KeyAggContext, seed [SeedSize]byte, signerIndex int, key *KeyPair, message []byte) (*FirstRound, error) {
	if signerIndex < 0 || signerIndex >= len(ctx.keys) {
		return nil, errors.Errorf("signer index %d out of range for %d participants", signerIndex, len(ctx.keys))
	}
	if !bytes.Equal(ctx.keys[signerIndex].SerializeCompressed(), key.PublicKey()) {
		return nil, errors.Errorf("signer index %d does not match our public key", signerIndex)
	}

	sctx, err := musig2.NewContext(
		key.priv, false,
		musig2.WithKnownSigners(ctx.keys),
	)
	if err != nil {
		return nil, errors.Wrap(err, "signing context")
	}

	nonces, err := musig2.GenNonces(
		musig2.WithPublicKey(key.priv.PubKey()),
		musig2.WithCustomRand(bytes.NewReader(seed[:])),
	)
	if err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	session, err := sctx.NewSession(musig2.WithPreGeneratedNonce(nonces))
	if err != nil {
		return nil, errors.Wrap(err, "signing session")
	}

	return &FirstRound{
		session: session,
		digest:  MessageDigest(message),
	}, nil
}

// PubNonce returns our serialized public nonce.
func (r *FirstRound) PubNonce() []byte {
	nonce := r.session.PublicNonce()
	return nonce[:]
}

// ReceiveNonce ingests one peer's public nonce.
func (r *FirstRound) ReceiveNonce(raw []byte) error {
	if len(raw) != NonceSize {
		return errors.Errorf("nonce must be %d bytes, got %d", NonceSize, len(raw))
	}

	var nonce [NonceSize]byte
	copy(nonce[:], raw)

	haveAll, err := r.session.RegisterPubNonce(nonce)
	if err != nil {
		return errors.Wrap(err, "register nonce")
	}
	r.haveAll = haveAll
	return nil
}

// Finalize combines the private seed, all peer nonces and the message into our
// partial signature, moving to round two.
func (r *FirstRound) Finalize() (*SecondRound, error) {
	if !r.haveAll {
		return nil, errors.New("missing peer nonces")
	}

	partial, err := r.session.Sign(r.digest)
	if err != nil {
		return nil, errors.Wrap(err, "partial sign")
	}

	var buf bytes.Buffer
	if err := partial.Encode(&buf); err != nil {
		return nil, errors.Wrap(err, "encode partial signature")
	}

	return &SecondRound{session: r.session, partial: buf.Bytes()}, nil
}

// SecondRound holds the round-two state: our partial signature plus the
// accumulating peer partials.
type SecondRound struct {
	session *musig2.Session
	partial []byte
	haveAll bool
}

// PartialSignature returns our serialized partial signature.
func (r *SecondRound) PartialSignature() []byte {
	return r.partial
}

// ReceivePartial ingests one peer's partial signature.
func (r *SecondRound) ReceivePartial(raw []byte) error {
	if len(raw) != PartialSignatureSize {
		return errors.Errorf("partial signature must be %d bytes, got %d", PartialSignatureSize, len(raw))
	}

	var sig musig2.PartialSignature
	if err := sig.Decode(bytes.NewReader(raw)); err != nil {
		return errors.Wrap(err, "decode partial signature")
	}

	haveAll, err := r.session.CombineSig(&sig)
	if err != nil {
		return errors.Wrap(err, "combine partial signature")
	}
	r.haveAll = haveAll
	return nil
}

// Finalize combines all partial signatures into the final signature.
func (r *SecondRound) Finalize() ([]byte, error) {
	if !r.haveAll {
		return nil, errors.New("missing peer partial signatures")
	}

	final := r.session.FinalSig()
	if final == nil {
		return nil, errors.New("final signature unavailable")
	}
	return final.Serialize(), nil
}

// Verify reports whether signature is a valid signature over message by the
// aggregated key.
func Verify(aggregatedKey, signature, message []byte) bool {
	pub, err := btcec.ParsePubKey(aggregatedKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	digest := MessageDigest(message)
	return sig.Verify(digest[:], pub)
}
