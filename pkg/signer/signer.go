package signer

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/musig"
	"github.com/f3rmion/musig2-node/pkg/signing"
)

// Signer holds one participant's long-term key and its per-session round
// state in the hub topology. The operator delivers all cross-participant
// data; the signer only ever reveals its public nonce, partial signature and
// candidate final signature.
type Signer struct {
	key *musig.KeyPair

	mu     sync.Mutex
	rounds map[string]*signing.Round
}

func New(key *musig.KeyPair) *Signer {
	return &Signer{
		key:    key,
		rounds: make(map[string]*signing.Round),
	}
}

// PublicKey returns the signer's compressed public key.
func (s *Signer) PublicKey() []byte {
	return s.key.PublicKey()
}

// StartRound creates the round state for a new session and returns our public
// nonce. A session id may start at most one round: repeating it would risk
// reusing round state across signing attempts.
func (s *Signer) StartRound(sessionID string, ctxBytes []byte, signerIndex int, message []byte) ([]byte, error) {
	ctx, err := musig.ParseKeyAggContext(ctxBytes)
	if err != nil {
		return nil, errors.Wrap(err, "aggregation context")
	}

	round, err := signing.NewRound(ctx, s.key, signerIndex, message)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.rounds[sessionID]; ok {
		s.mu.Unlock()
		return nil, errors.Errorf("session %s already started", sessionID)
	}
	s.rounds[sessionID] = round
	s.mu.Unlock()

	nonce, err := round.Start()
	if err != nil {
		return nil, err
	}

	log.Infow("Round started",
		"session_id", sessionID,
		"signer_index", signerIndex,
		"participants", ctx.NumSigners(),
	)
	return nonce, nil
}

// DeliverNonces ingests the other participants' nonces and, once the barrier
// is met, finalizes round one into our partial signature.
func (s *Signer) DeliverNonces(sessionID string, nonces map[int][]byte) ([]byte, error) {
	round, err := s.round(sessionID)
	if err != nil {
		return nil, err
	}

	for _, from := range sortedIndexes(nonces) {
		if err := round.AddNonce(from, nonces[from]); err != nil {
			return nil, err
		}
	}

	partial, err := round.FinalizePartial()
	if err != nil {
		return nil, err
	}

	log.Infow("Partial signature produced",
		"session_id", sessionID,
		"peer_nonces", len(nonces),
	)
	return partial, nil
}

// DeliverPartialSignatures ingests the other participants' partial signatures
// and finalizes the session into the candidate final signature.
func (s *Signer) DeliverPartialSignatures(sessionID string, partials map[int][]byte) ([]byte, error) {
	round, err := s.round(sessionID)
	if err != nil {
		return nil, err
	}

	for _, from := range sortedIndexes(partials) {
		if err := round.AddPartial(from, partials[from]); err != nil {
			return nil, err
		}
	}

	final, err := round.FinalizeSignature()
	if err != nil {
		return nil, err
	}

	log.Infow("Session finalized",
		"session_id", sessionID,
		"peer_partials", len(partials),
	)
	return final, nil
}

func (s *Signer) round(sessionID string) (*signing.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[sessionID]
	if !ok {
		return nil, signing.ErrSessionNotFound
	}
	return round, nil
}

func sortedIndexes(m map[int][]byte) []int {
	indexes := make([]int, 0, len(m))
	for i := range m {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	return indexes
}
