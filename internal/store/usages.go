package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const insertUsageSQL = `INSERT INTO usages
  (file_id, kind, name, source, object, key, placement, line, col, handled_by)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertInjectionSQL = `INSERT INTO injections
  (file_id, source, export_name, binding, provider, position)
  VALUES (?, ?, ?, ?, ?, ?)`

func usageArgs(u *Usage) []any {
	return []any{u.FileID, u.Kind, u.Name, u.Source, u.Object, u.Key, u.Placement, u.Line, u.Col, u.HandledBy}
}

func injectionArgs(inj *Injection) []any {
	return []any{inj.FileID, inj.Source, inj.ExportName, inj.Binding, inj.Provider, inj.Position}
}

// InsertFile records a processed file and returns its ID.
func (s *Store) InsertFile(f *File) (int64, error) {
	if f.LastProcessed.IsZero() {
		f.LastProcessed = time.Now()
	}
	res, err := s.db.Exec(
		"INSERT INTO files (path, hash, method, last_processed) VALUES (?, ?, ?, ?)",
		f.Path, f.Hash, f.Method, f.LastProcessed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file %s: %w", f.Path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

// UpdateFileHash replaces the stored content hash of a file.
func (s *Store) UpdateFileHash(fileID int64, hash string) error {
	if _, err := s.db.Exec("UPDATE files SET hash = ? WHERE id = ?", hash, fileID); err != nil {
		return fmt.Errorf("update file hash: %w", err)
	}
	return nil
}

// FileByPath returns the file record for path, or nil if none exists.
func (s *Store) FileByPath(path string) (*File, error) {
	var f File
	var hash sql.NullString
	err := s.db.QueryRow(
		"SELECT id, path, hash, method, last_processed FROM files WHERE path = ?", path,
	).Scan(&f.ID, &f.Path, &hash, &f.Method, &f.LastProcessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path %s: %w", path, err)
	}
	f.Hash = hash.String
	return &f, nil
}

// Files returns every file record ordered by path.
func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, hash, method, last_processed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()

	var out []*File
	for rows.Next() {
		var f File
		var hash sql.NullString
		if err := rows.Scan(&f.ID, &f.Path, &hash, &f.Method, &f.LastProcessed); err != nil {
			return nil, err
		}
		f.Hash = hash.String
		out = append(out, &f)
	}
	return out, rows.Err()
}

// InsertUsage records a single usage.
func (s *Store) InsertUsage(u *Usage) (int64, error) {
	res, err := s.db.Exec(insertUsageSQL, usageArgs(u)...)
	if err != nil {
		return 0, fmt.Errorf("insert usage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// InsertInjection records a single injection.
func (s *Store) InsertInjection(inj *Injection) (int64, error) {
	res, err := s.db.Exec(insertInjectionSQL, injectionArgs(inj)...)
	if err != nil {
		return 0, fmt.Errorf("insert injection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	inj.ID = id
	return id, nil
}

// UsagesByFile returns the usages of a file in source order.
func (s *Store) UsagesByFile(fileID int64) ([]*Usage, error) {
	rows, err := s.db.Query(`SELECT id, file_id, kind, name, source, object, key, placement, line, col, handled_by
		FROM usages WHERE file_id = ? ORDER BY line, col, id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("usages by file: %w", err)
	}
	defer rows.Close()

	var out []*Usage
	for rows.Next() {
		var u Usage
		var name, source, key, placement, handled sql.NullString
		var object sql.NullString
		if err := rows.Scan(&u.ID, &u.FileID, &u.Kind, &name, &source, &object,
			&key, &placement, &u.Line, &u.Col, &handled); err != nil {
			return nil, err
		}
		u.Name, u.Source, u.Key = name.String, source.String, key.String
		u.Placement, u.HandledBy = placement.String, handled.String
		if object.Valid {
			u.Object = &object.String
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// InjectionsByFile returns the injections of a file in insertion order.
func (s *Store) InjectionsByFile(fileID int64) ([]*Injection, error) {
	rows, err := s.db.Query(`SELECT id, file_id, source, export_name, binding, provider, position
		FROM injections WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("injections by file: %w", err)
	}
	defer rows.Close()

	var out []*Injection
	for rows.Next() {
		var inj Injection
		var export, binding sql.NullString
		if err := rows.Scan(&inj.ID, &inj.FileID, &inj.Source, &export, &binding,
			&inj.Provider, &inj.Position); err != nil {
			return nil, err
		}
		inj.ExportName, inj.Binding = export.String, binding.String
		out = append(out, &inj)
	}
	return out, rows.Err()
}

// ModuleCounts returns each injected module with the number of distinct
// files it was injected into, most used first.
func (s *Store) ModuleCounts() ([]ModuleCount, error) {
	rows, err := s.db.Query(`SELECT source, COUNT(DISTINCT file_id) AS n
		FROM injections GROUP BY source ORDER BY n DESC, source`)
	if err != nil {
		return nil, fmt.Errorf("module counts: %w", err)
	}
	defer rows.Close()

	var out []ModuleCount
	for rows.Next() {
		var mc ModuleCount
		if err := rows.Scan(&mc.Source, &mc.Files); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

// UsageCounts aggregates usages by shape, most frequent first. An empty
// kind matches every kind.
func (s *Store) UsageCounts(kind string) ([]UsageCount, error) {
	rows, err := s.db.Query(`SELECT kind, COALESCE(name, ''), COALESCE(source, ''),
		COALESCE(object, ''), COALESCE(key, ''), COUNT(*) AS n
		FROM usages WHERE (? = '' OR kind = ?)
		GROUP BY kind, name, source, object, key
		ORDER BY n DESC, kind, name, source, object, key`, kind, kind)
	if err != nil {
		return nil, fmt.Errorf("usage counts: %w", err)
	}
	defer rows.Close()

	var out []UsageCount
	for rows.Next() {
		var uc UsageCount
		if err := rows.Scan(&uc.Kind, &uc.Name, &uc.Source, &uc.Object, &uc.Key, &uc.Count); err != nil {
			return nil, err
		}
		out = append(out, uc)
	}
	return out, rows.Err()
}
