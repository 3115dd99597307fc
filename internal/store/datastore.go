package store

// DataStore is the write interface the transform pipeline records into. Both
// Store (direct SQLite) and BatchedStore (in-memory buffering for parallel
// processing) implement it.
type DataStore interface {
	InsertUsage(u *Usage) (int64, error)
	InsertInjection(inj *Injection) (int64, error)
	UsagesByFile(fileID int64) ([]*Usage, error)
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
