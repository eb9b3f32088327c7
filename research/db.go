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

package research

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
	"go.uber.org/zap"
)

//go:embed schema.sql
var createDB string

func openAndProvisionDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if err = provisionDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var version string
	err = db.QueryRowContext(ctx, "SELECT sqlite_version() AS version").Scan(&version)
	if err == nil {
		Log.Debug("using sqlite", zap.String("version", version))
	}

	return db, nil
}

func provisionDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, createDB)
	if err != nil {
		return fmt.Errorf("setting up database: %w", err)
	}

	// assign this library a persistent UUID, and store a version so
	// readers can know how to work with this DB
	libraryID := uuid.New()
	_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO library (key, value) VALUES (?, ?), (?, ?)`,
		"id", libraryID.String(),
		"version", "1",
	)
	if err != nil {
		return fmt.Errorf("persisting library UUID and version: %w", err)
	}

	if err := saveAllProviders(ctx, db); err != nil {
		return fmt.Errorf("saving registered providers to database: %w", err)
	}

	// the secrets row for the default user exists from the start,
	// created empty and mutated only by successful authentication
	_, err = db.ExecContext(ctx, `INSERT OR IGNORE INTO secrets (user_id) VALUES (?)`, DefaultUserID)
	if err != nil {
		return fmt.Errorf("seeding secrets row: %w", err)
	}

	return nil
}

func saveAllProviders(ctx context.Context, db *sql.DB) error {
	if len(providers) == 0 {
		return nil
	}

	query := `INSERT OR IGNORE INTO "providers" ("name") VALUES`

	vals := make([]any, 0, len(providers))
	var count int
	for _, p := range AllProviders() {
		if count > 0 {
			query += ","
		}
		query += " (?)"
		vals = append(vals, p.Name)
		count++
	}

	_, err := db.ExecContext(ctx, query, vals...)
	if err != nil {
		return fmt.Errorf("writing providers to DB: %w", err)
	}

	return nil
}

func loadLibraryID(ctx context.Context, db *sql.DB) (uuid.UUID, error) {
	var idStr string
	err := db.QueryRowContext(ctx, `SELECT value FROM library WHERE key=? LIMIT 1`, "id").Scan(&idStr)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("selecting library UUID: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("malformed UUID %s: %w", idStr, err)
	}
	return id, nil
}
