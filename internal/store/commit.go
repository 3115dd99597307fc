package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Buffered rows reference their file by real
// ID, so only their own fake IDs are replaced.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i := range batch.Usages {
		u := &batch.Usages[i]
		realID, err := insertUsageTx(tx, u)
		if err != nil {
			return fmt.Errorf("commit batch: usage %q: %w", u.Name, err)
		}
		u.ID = realID
	}
	for i := range batch.Injections {
		inj := &batch.Injections[i]
		realID, err := insertInjectionTx(tx, inj)
		if err != nil {
			return fmt.Errorf("commit batch: injection %q: %w", inj.Source, err)
		}
		inj.ID = realID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func insertUsageTx(tx *sql.Tx, u *Usage) (int64, error) {
	res, err := tx.Exec(insertUsageSQL, usageArgs(u)...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertInjectionTx(tx *sql.Tx, inj *Injection) (int64, error) {
	res, err := tx.Exec(insertInjectionSQL, injectionArgs(inj)...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
