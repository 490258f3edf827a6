package signing

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/pkg/musig"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("signing: session not found")

// Session is one signing attempt: a message bound to the aggregation context
// of a fixed participant set. Sessions live until the process exits; a failed
// session is abandoned and retrying means creating a new one.
type Session struct {
	ID      string
	Message []byte
	Ctx     *musig.KeyAggContext
}

// Manager owns the session map. Sessions are mutually independent; the map is
// keyed by unpredictable uuid ids so concurrent sessions never collide.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create builds the aggregation context from the ordered identity list and
// registers a new session. An empty or duplicate-containing identity set
// fails the attempt without touching any other session.
func (m *Manager) Create(message []byte, orderedKeys [][]byte) (*Session, error) {
	ctx, err := musig.AggregateKeys(orderedKeys)
	if err != nil {
		return nil, errors.Wrap(err, "aggregation context")
	}

	s := &Session{
		ID:      uuid.NewString(),
		Message: append([]byte(nil), message...),
		Ctx:     ctx,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s, nil
}

// Get looks up a session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
