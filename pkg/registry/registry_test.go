package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(i int) []byte {
	return []byte(fmt.Sprintf("key-%02d-padded-to-look-like-a-key!", i))
}

func TestRegisterAssignsInsertionOrder(t *testing.T) {
	r := New(0)

	for i := 0; i < 5; i++ {
		index, err := r.Register(testKey(i), fmt.Sprintf("http://localhost:%d", 8000+i))
		require.Nil(t, err)
		assert.Equal(t, i, index)
	}

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 5)
	for i, p := range snapshot {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, testKey(i), p.PublicKey)
	}

	keys := r.Keys()
	require.Len(t, keys, 5)
	for i, k := range keys {
		assert.Equal(t, testKey(i), k)
	}
}

func TestRegisterRejectsDuplicateIdentity(t *testing.T) {
	r := New(0)

	index, err := r.Register(testKey(1), "http://localhost:8001")
	require.Nil(t, err)
	assert.Equal(t, 0, index)

	// Same key, different address: still a duplicate.
	_, err = r.Register(testKey(1), "http://localhost:9999")
	assert.Equal(t, ErrDuplicateIdentity, err)

	// The original record is untouched.
	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "http://localhost:8001", snapshot[0].Address)
}

func TestRegisterRejectsWhenSaturated(t *testing.T) {
	r := New(2)

	_, err := r.Register(testKey(1), "a")
	require.Nil(t, err)
	_, err = r.Register(testKey(2), "b")
	require.Nil(t, err)

	_, err = r.Register(testKey(3), "c")
	assert.Equal(t, ErrSaturated, err)
	assert.Equal(t, 2, r.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New(0)
	_, err := r.Register(testKey(1), "a")
	require.Nil(t, err)

	snapshot := r.Snapshot()
	snapshot[0].Address = "mutated"

	assert.Equal(t, "a", r.Snapshot()[0].Address)
}
