// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"fmt"
	"io/fs"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// migrations is the index schema history. Append only.
var migrations = []string{
	`CREATE TABLE entries (
		id            BLOB PRIMARY KEY,
		owner         TEXT NOT NULL,
		name          TEXT NOT NULL,
		original_path TEXT NOT NULL,
		mode          INTEGER NOT NULL,
		size          INTEGER NOT NULL,
		chunks        INTEGER NOT NULL,
		writer_uid    INTEGER NOT NULL,
		generation    BLOB NOT NULL,
		compression   INTEGER NOT NULL,
		created_at    INTEGER NOT NULL,
		UNIQUE (owner, name)
	) WITHOUT ROWID;`,
}

// entry is one row of the index.
type entry struct {
	ID           EntryID
	Owner        string
	Name         string
	OriginalPath string
	Mode         fs.FileMode
	Size         int64
	Chunks       uint32
	WriterUID    uint32
	Generation   []byte
	Compression  Compression
	CreatedAt    time.Time
}

const selectEntry = `SELECT owner, name, original_path, mode, size, chunks,
	writer_uid, generation, compression, created_at
	FROM entries WHERE id = ?`

// lookupEntry returns the row for id, or ErrNotFound.
func lookupEntry(conn *sqlite.Conn, id EntryID) (*entry, error) {
	var found *entry
	err := sqlitex.Execute(conn, selectEntry, &sqlitex.ExecOptions{
		Args: []any{id[:]},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			generation := make([]byte, stmt.ColumnLen(7))
			stmt.ColumnBytes(7, generation)
			found = &entry{
				ID:           id,
				Owner:        stmt.ColumnText(0),
				Name:         stmt.ColumnText(1),
				OriginalPath: stmt.ColumnText(2),
				Mode:         fs.FileMode(stmt.ColumnInt64(3)),
				Size:         stmt.ColumnInt64(4),
				Chunks:       uint32(stmt.ColumnInt64(5)),
				WriterUID:    uint32(stmt.ColumnInt64(6)),
				Generation:   generation,
				Compression:  Compression(stmt.ColumnInt(8)),
				CreatedAt:    time.Unix(0, stmt.ColumnInt64(9)).UTC(),
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading index entry %s: %w", id, err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func insertEntry(conn *sqlite.Conn, row *entry) error {
	err := sqlitex.Execute(conn, `INSERT INTO entries
		(id, owner, name, original_path, mode, size, chunks, writer_uid, generation, compression, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			row.ID[:], row.Owner, row.Name, row.OriginalPath,
			int64(row.Mode), row.Size, int64(row.Chunks), int64(row.WriterUID),
			row.Generation, int64(row.Compression), row.CreatedAt.UnixNano(),
		},
	})
	if err != nil {
		return fmt.Errorf("inserting index entry %s: %w", row.ID, err)
	}
	return nil
}

func deleteEntry(conn *sqlite.Conn, id EntryID) error {
	if err := sqlitex.Execute(conn, `DELETE FROM entries WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id[:]},
	}); err != nil {
		return fmt.Errorf("deleting index entry %s: %w", id, err)
	}
	return nil
}

func countEntries(conn *sqlite.Conn) (int, error) {
	var count int
	err := sqlitex.Execute(conn, `SELECT count(*) FROM entries`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("counting index entries: %w", err)
	}
	return count, nil
}
