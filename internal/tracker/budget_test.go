package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetStoreEvictsLargestFirst(t *testing.T) {
	backend := NewMemoryStorage()
	store := NewBudgetStore(backend, 100, ItemsKey)

	require.NoError(t, store.Set(ItemsKey, make([]byte, 30)))
	require.NoError(t, store.Set("small", make([]byte, 10)))
	require.NoError(t, store.Set("large", make([]byte, 40)))

	require.NoError(t, store.Set("incoming", make([]byte, 30)))

	_, err := backend.Get("large")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = backend.Get("small")
	assert.NoError(t, err)
	_, err = backend.Get(ItemsKey)
	assert.NoError(t, err)
}

func TestBudgetStoreLRUTiebreak(t *testing.T) {
	backend := NewMemoryStorage()
	store := NewBudgetStore(backend, 60)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, store.Set("a", make([]byte, 20)))
	require.NoError(t, store.Set("b", make([]byte, 20)))
	_, err := store.Get("a")
	require.NoError(t, err)

	require.NoError(t, store.Set("c", make([]byte, 30)))

	_, err = backend.Get("b")
	assert.ErrorIs(t, err, ErrNotFound, "least recently used entry should go first")
	_, err = backend.Get("a")
	assert.NoError(t, err)
}

func TestBudgetStoreNeverEvictsEssential(t *testing.T) {
	backend := NewMemoryStorage()
	store := NewBudgetStore(backend, 50, ItemsKey)

	require.NoError(t, store.Set(ItemsKey, make([]byte, 40)))
	err := store.Set("image", make([]byte, 20))
	assert.ErrorIs(t, err, ErrOverBudget)

	_, err = backend.Get(ItemsKey)
	assert.NoError(t, err)
}

func TestBudgetStoreRejectsOversizedValue(t *testing.T) {
	store := NewBudgetStore(NewMemoryStorage(), 10)
	assert.ErrorIs(t, store.Set("x", make([]byte, 11)), ErrOverBudget)
}

func TestBudgetStoreOverwriteDoesNotDoubleCount(t *testing.T) {
	store := NewBudgetStore(NewMemoryStorage(), 50)
	require.NoError(t, store.Set("x", make([]byte, 40)))
	assert.NoError(t, store.Set("x", make([]byte, 45)))
}

func TestBadgerStorage(t *testing.T) {
	db, err := OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Set("k", []byte("value")))
	got, err := db.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))

	sizes, err := db.Sizes()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"k": 5}, sizes)

	require.NoError(t, db.Delete("k"))
	_, err = db.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}
