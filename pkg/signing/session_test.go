package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f3rmion/musig2-node/pkg/musig"
)

func testKeys(t *testing.T, n int) [][]byte {
	keys := make([][]byte, n)
	for i := range keys {
		kp, err := musig.GenerateKeyPair()
		require.Nil(t, err)
		keys[i] = kp.PublicKey()
	}
	return keys
}

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager()

	s, err := m.Create([]byte("msg"), testKeys(t, 3))
	require.Nil(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 3, s.Ctx.NumSigners())

	got, err := m.Get(s.ID)
	require.Nil(t, err)
	assert.Equal(t, s, got)
}

func TestManagerGetUnknownSession(t *testing.T) {
	m := NewManager()

	_, err := m.Get("no-such-session")
	assert.Equal(t, ErrSessionNotFound, err)
}

func TestManagerCreateRejectsBadKeySet(t *testing.T) {
	m := NewManager()

	_, err := m.Create([]byte("msg"), nil)
	assert.NotNil(t, err)

	keys := testKeys(t, 1)
	_, err = m.Create([]byte("msg"), [][]byte{keys[0], keys[0]})
	assert.NotNil(t, err)
}

func TestConcurrentSessionsAreIndependent(t *testing.T) {
	m := NewManager()

	a, err := m.Create([]byte("first"), testKeys(t, 2))
	require.Nil(t, err)
	b, err := m.Create([]byte("second"), testKeys(t, 2))
	require.Nil(t, err)

	assert.NotEqual(t, a.ID, b.ID)

	gotA, err := m.Get(a.ID)
	require.Nil(t, err)
	gotB, err := m.Get(b.ID)
	require.Nil(t, err)
	assert.Equal(t, []byte("first"), gotA.Message)
	assert.Equal(t, []byte("second"), gotB.Message)
}
