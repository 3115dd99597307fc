package store

import "sync"

// BatchedStore buffers usage and injection inserts in memory using fake
// (negative) IDs. It implements DataStore so the transform workers can
// record into it without touching SQLite.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
// UsagesByFile passes through to the underlying Store, which is safe for
// concurrent reads.
type BatchedStore struct {
	store *Store // for read passthrough
	mu    sync.Mutex

	Usages     []Usage
	Injections []Injection

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates a BatchedStore backed by the given Store for read queries.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{
		store:      s,
		nextFakeID: -1,
	}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertUsage(u *Usage) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	u.ID = fakeID
	b.Usages = append(b.Usages, *u)
	return fakeID, nil
}

func (b *BatchedStore) InsertInjection(inj *Injection) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	inj.ID = fakeID
	b.Injections = append(b.Injections, *inj)
	return fakeID, nil
}

// UsagesByFile returns committed usages for fileID followed by any still
// buffered in the batch.
func (b *BatchedStore) UsagesByFile(fileID int64) ([]*Usage, error) {
	out, err := b.store.UsagesByFile(fileID)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Usages {
		if b.Usages[i].FileID == fileID {
			u := b.Usages[i]
			out = append(out, &u)
		}
	}
	return out, nil
}

// Len returns the number of buffered rows.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Usages) + len(b.Injections)
}
