/*
	Research
	Copyright (c) 2024 The Research Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package research implements the core of the read-it-later manager:
// the canonical item model, the provider registry, credential state,
// and the idempotent synchronization engine over a SQLite library.
package research

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DBFilename is the name of the library database file.
const DBFilename = "research.sqlite"

// Library is an open research library: a handle to the database
// holding items, tags, providers, and secrets.
type Library struct {
	path string // path of the database file
	id   uuid.UUID

	// cache of provider name -> DB row ID
	providersMu sync.RWMutex
	providers   map[string]int64

	// The database handle and its mutex. Bulk syncs interleave row
	// scans with writes on the same handle, which SQLite answers
	// with "database is locked" errors; serializing access through
	// this mutex avoids that.
	db   *sql.DB
	dbMu sync.RWMutex
}

func (l *Library) String() string { return fmt.Sprintf("%s:%s", l.id, l.path) }

// Path returns the path of the library's database file.
func (l *Library) Path() string { return l.path }

// Open opens (and provisions, if needed) the library database at
// dbPath. The file must already exist; use Create to start a new
// library.
func Open(ctx context.Context, dbPath string) (*Library, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no library at %s (run `init` first): %w", dbPath, err)
	}
	return openLibrary(ctx, dbPath)
}

// Create initializes a new library database inside dir and returns
// it opened. Creating over an existing library is a safe no-op
// because provisioning is idempotent.
func Create(ctx context.Context, dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("making library directory: %w", err)
	}
	return openLibrary(ctx, filepath.Join(dir, DBFilename))
}

// CreateAt is like Create but takes the database file path itself,
// for configurations that name the file directly.
func CreateAt(ctx context.Context, dbPath string) (*Library, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("making library directory: %w", err)
		}
	}
	return openLibrary(ctx, dbPath)
}

func openLibrary(ctx context.Context, dbPath string) (*Library, error) {
	db, err := openAndProvisionDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	lib := &Library{
		path:      dbPath,
		db:        db,
		providers: make(map[string]int64),
	}

	lib.id, err = loadLibraryID(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := lib.loadProviderIDs(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return lib, nil
}

// Close releases the library's database handle.
func (l *Library) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// ProviderID resolves a provider name to its database row ID.
func (l *Library) ProviderID(name string) (int64, error) {
	l.providersMu.RLock()
	id, ok := l.providers[name]
	l.providersMu.RUnlock()
	if !ok {
		return 0, UnknownProviderError{Name: name}
	}
	return id, nil
}

func (l *Library) loadProviderIDs(ctx context.Context) error {
	l.dbMu.RLock()
	rows, err := l.db.QueryContext(ctx, `SELECT id, name FROM providers`)
	if err != nil {
		l.dbMu.RUnlock()
		return fmt.Errorf("querying providers: %w", err)
	}

	l.providersMu.Lock()
	defer l.providersMu.Unlock()
	defer l.dbMu.RUnlock()
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("scanning provider row: %w", err)
		}
		l.providers[name] = id
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating provider rows: %w", err)
	}
	return nil
}
