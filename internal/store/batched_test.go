package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchedStore_UsagesByFile_ReturnsBufferedUsages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	// Insert a real file into the database (simulates the serial prepare phase).
	f := insertTestFile(t, s, "/main.js")

	batch := NewBatchedStore(s)
	u1 := insertTestUsage(t, batch, f.ID, "global", "Map")
	u2 := insertTestUsage(t, batch, f.ID, "global", "Set")
	assert.Negative(t, u1.ID, "batched IDs should be negative")
	assert.Negative(t, u2.ID)
	assert.NotEqual(t, u1.ID, u2.ID)

	usages, err := batch.UsagesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "Map", usages[0].Name)
	assert.Equal(t, "Set", usages[1].Name)

	// Nothing reached SQLite yet.
	stored, err := s.UsagesByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBatchedStore_UsagesByFile_MergesWithDatabase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js")
	insertTestUsage(t, s, f.ID, "global", "Existing")

	batch := NewBatchedStore(s)
	insertTestUsage(t, batch, f.ID, "global", "New")

	usages, err := batch.UsagesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "Existing", usages[0].Name)
	assert.Positive(t, usages[0].ID)
	assert.Equal(t, "New", usages[1].Name)
	assert.Negative(t, usages[1].ID)
}

func TestBatchedStore_UsagesByFile_DoesNotReturnOtherFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a.js")
	b := insertTestFile(t, s, "/b.js")

	batch := NewBatchedStore(s)
	insertTestUsage(t, batch, a.ID, "global", "Map")
	insertTestUsage(t, batch, b.ID, "global", "Set")

	usages, err := batch.UsagesByFile(a.ID)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Equal(t, "Map", usages[0].Name)
}

func TestCommitBatch_PersistsWithRealIDs(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js")

	batch := NewBatchedStore(s)
	insertTestUsage(t, batch, f.ID, "global", "Promise")
	_, err := batch.InsertInjection(&Injection{FileID: f.ID, Source: "core-js/modules/es.promise", Provider: "corejs", Position: "inline"})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Len())

	require.NoError(t, s.CommitBatch(batch))

	usages, err := s.UsagesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, usages, 1)
	assert.Positive(t, usages[0].ID)
	assert.Equal(t, "Promise", usages[0].Name)

	injs, err := s.InjectionsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, injs, 1)
	assert.Positive(t, injs[0].ID)
	assert.Positive(t, batch.Injections[0].ID, "batch rows carry real IDs after commit")
}

func TestCommitBatch_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js")

	batch := NewBatchedStore(s)
	insertTestUsage(t, batch, f.ID, "global", "Map")
	// Unknown file violates the foreign key.
	insertTestUsage(t, batch, 9999, "global", "Set")

	require.Error(t, s.CommitBatch(batch))

	usages, err := s.UsagesByFile(f.ID)
	require.NoError(t, err)
	assert.Empty(t, usages)
}

func TestBatchedStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.js")
	batch := NewBatchedStore(s)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				batch.InsertUsage(&Usage{FileID: f.ID, Kind: "global", Name: "X"})
			}
		}()
	}
	wg.Wait()

	require.Len(t, batch.Usages, 200)
	seen := make(map[int64]bool)
	for _, u := range batch.Usages {
		assert.False(t, seen[u.ID], "duplicate fake ID %d", u.ID)
		seen[u.ID] = true
	}
}
