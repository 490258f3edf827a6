package signing

import (
	"crypto/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/pkg/musig"
)

// Status is the position of a participant's round state machine. Transitions
// are strictly ordered; there are no skips and no re-entry into an earlier
// state.
type Status int

const (
	Fresh Status = iota
	NonceReady
	NoncesCollected
	PartialReady
	Finalized
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case NonceReady:
		return "nonce_ready"
	case NoncesCollected:
		return "nonces_collected"
	case PartialReady:
		return "partial_ready"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition rejects operations issued out of protocol order.
	ErrInvalidTransition = errors.New("signing: invalid round transition")
	// ErrUnknownParticipant rejects contributions from an index outside the
	// participant set.
	ErrUnknownParticipant = errors.New("signing: unknown participant index")
	// ErrOwnContribution rejects a peer contribution carrying our own index.
	ErrOwnContribution = errors.New("signing: contribution from own index")
	// ErrDuplicateContribution rejects a second contribution from one index.
	ErrDuplicateContribution = errors.New("signing: duplicate contribution")
	// ErrInvalidNonceFormat rejects a malformed peer nonce.
	ErrInvalidNonceFormat = errors.New("signing: invalid nonce format")
	// ErrInvalidPartialFormat rejects a malformed peer partial signature.
	ErrInvalidPartialFormat = errors.New("signing: invalid partial signature format")
	// ErrMissingContributions rejects finalization before the barrier is met.
	ErrMissingContributions = errors.New("signing: missing peer contributions")
)

// Round is one participant's state for one session. Both topologies drive the
// same barrier semantics through it: deliver peer contributions, retrieve the
// local contribution once the required count is gathered. A Round is owned by
// the participant it belongs to and is safe for concurrent delivery.
type Round struct {
	mu      sync.Mutex
	status  Status
	ctx     *musig.KeyAggContext
	key     *musig.KeyPair
	index   int
	total   int
	message []byte

	first  *musig.FirstRound
	second *musig.SecondRound

	nonces   map[int][]byte
	partials map[int][]byte
	nonce    []byte
	partial  []byte
	final    []byte
}

// NewRound prepares the state machine for the participant at index in ctx.
func NewRound(ctx *musig.KeyAggContext, key *musig.KeyPair, index int, message []byte) (*Round, error) {
	if index < 0 || index >= ctx.NumSigners() {
		return nil, ErrUnknownParticipant
	}
	return &Round{
		status:   Fresh,
		ctx:      ctx,
		key:      key,
		index:    index,
		total:    ctx.NumSigners(),
		message:  append([]byte(nil), message...),
		nonces:   make(map[int][]byte),
		partials: make(map[int][]byte),
	}, nil
}

// Start derives a fresh unpredictable seed, generates the round-one state and
// returns our public nonce. The seed is never reused: a second Start on the
// same Round is a contract violation, and a new signing attempt gets a new
// Round.
func (r *Round) Start() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Fresh {
		return nil, errors.Wrapf(ErrInvalidTransition, "start in state %s", r.status)
	}

	var seed [musig.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, errors.Wrap(err, "nonce seed")
	}

	first, err := musig.NewFirstRound(r.ctx, seed, r.index, r.key, r.message)
	if err != nil {
		return nil, err
	}

	r.first = first
	r.nonce = first.PubNonce()
	r.status = NonceReady
	return r.nonce, nil
}

// PubNonce returns our public nonce once Start has run.
func (r *Round) PubNonce() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status < NonceReady {
		return nil, errors.Wrapf(ErrInvalidTransition, "nonce requested in state %s", r.status)
	}
	return r.nonce, nil
}

// AddNonce delivers one peer's public nonce. Once exactly total-1 distinct
// peer nonces are in, the round advances to NoncesCollected.
func (r *Round) AddNonce(from int, nonce []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != NonceReady {
		return errors.Wrapf(ErrInvalidTransition, "nonce delivered in state %s", r.status)
	}
	if err := r.checkSender(from, r.nonces); err != nil {
		return err
	}

	if err := r.first.ReceiveNonce(nonce); err != nil {
		return errors.Wrapf(ErrInvalidNonceFormat, "participant %d: %v", from, err)
	}

	r.nonces[from] = append([]byte(nil), nonce...)
	if len(r.nonces) == r.total-1 {
		r.status = NoncesCollected
	}
	return nil
}

// FinalizePartial deterministically combines our private seed, the collected
// peer nonces and the message into our partial signature. It requires the
// full nonce barrier.
func (r *Round) FinalizePartial() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != NoncesCollected {
		if r.status == NonceReady {
			return nil, errors.Wrapf(ErrMissingContributions, "have %d of %d peer nonces", len(r.nonces), r.total-1)
		}
		return nil, errors.Wrapf(ErrInvalidTransition, "partial finalize in state %s", r.status)
	}

	second, err := r.first.Finalize()
	if err != nil {
		return nil, err
	}

	r.second = second
	r.partial = second.PartialSignature()
	r.status = PartialReady
	return r.partial, nil
}

// AddPartial delivers one peer's partial signature.
func (r *Round) AddPartial(from int, partial []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != PartialReady {
		return errors.Wrapf(ErrInvalidTransition, "partial delivered in state %s", r.status)
	}
	if err := r.checkSender(from, r.partials); err != nil {
		return err
	}

	if err := r.second.ReceivePartial(partial); err != nil {
		return errors.Wrapf(ErrInvalidPartialFormat, "participant %d: %v", from, err)
	}

	r.partials[from] = append([]byte(nil), partial...)
	return nil
}

// FinalizeSignature combines all partial signatures into the candidate final
// signature. It requires exactly total-1 distinct peer partials.
func (r *Round) FinalizeSignature() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != PartialReady {
		return nil, errors.Wrapf(ErrInvalidTransition, "signature finalize in state %s", r.status)
	}
	if len(r.partials) != r.total-1 {
		return nil, errors.Wrapf(ErrMissingContributions, "have %d of %d peer partials", len(r.partials), r.total-1)
	}

	final, err := r.second.Finalize()
	if err != nil {
		return nil, err
	}

	r.final = final
	r.status = Finalized
	return final, nil
}

// PartialsComplete reports whether the partial-signature barrier is met.
func (r *Round) PartialsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == PartialReady && len(r.partials) == r.total-1
}

// Status returns the current state.
func (r *Round) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Index returns our participant index.
func (r *Round) Index() int {
	return r.index
}

// FinalSignature returns the finalized signature.
func (r *Round) FinalSignature() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != Finalized {
		return nil, errors.Wrapf(ErrInvalidTransition, "final signature requested in state %s", r.status)
	}
	return r.final, nil
}

func (r *Round) checkSender(from int, seen map[int][]byte) error {
	if from < 0 || from >= r.total {
		return errors.Wrapf(ErrUnknownParticipant, "index %d", from)
	}
	if from == r.index {
		return ErrOwnContribution
	}
	if _, ok := seen[from]; ok {
		return errors.Wrapf(ErrDuplicateContribution, "index %d", from)
	}
	return nil
}
