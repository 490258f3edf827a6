package registry

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrDuplicateIdentity is returned when a public key registers twice.
	ErrDuplicateIdentity = errors.New("registry: identity already registered")
	// ErrSaturated is returned when the registry capacity is exhausted.
	ErrSaturated = errors.New("registry: capacity exhausted")
)

// Participant is one registered signer. Records are immutable once assigned;
// the index follows insertion order, which is the canonical ordering rule for
// the hub topology.
type Participant struct {
	Index     int
	PublicKey []byte
	Address   string
}

// Registry tracks the participant set for the hub topology.
type Registry struct {
	mu       sync.Mutex
	capacity int
	records  []Participant
	byKey    map[string]int
}

// New creates a registry. capacity limits the number of registrations;
// 0 means unbounded.
func New(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		byKey:    make(map[string]int),
	}
}

// Register assigns the next index to the identity. Duplicate identities are
// rejected, never merged.
func (r *Registry) Register(publicKey []byte, address string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[string(publicKey)]; ok {
		return 0, ErrDuplicateIdentity
	}
	if r.capacity > 0 && len(r.records) >= r.capacity {
		return 0, ErrSaturated
	}

	index := len(r.records)
	key := make([]byte, len(publicKey))
	copy(key, publicKey)

	r.records = append(r.records, Participant{
		Index:     index,
		PublicKey: key,
		Address:   address,
	})
	r.byKey[string(key)] = index

	return index, nil
}

// Snapshot returns the ordered participant list.
func (r *Registry) Snapshot() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Participant, len(r.records))
	copy(out, r.records)
	return out
}

// Keys returns the ordered identity list, the input to key aggregation.
func (r *Registry) Keys() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([][]byte, len(r.records))
	for i, rec := range r.records {
		keys[i] = rec.PublicKey
	}
	return keys
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
