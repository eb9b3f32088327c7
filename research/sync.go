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
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SyncStats summarizes one sync run. TagFailures counts recoverable
// per-tag association failures; they do not fail the run, but they
// are reported so data loss is never silent.
type SyncStats struct {
	Total       int
	Inserted    int
	Existing    int
	TagFailures int
}

// SyncProvider reconciles fetched items into the library under the
// named provider. Every item of the batch is scoped to that one
// provider's row ID, resolved before any write (a sync for an
// unregistered provider fails hard).
//
// Upserts are insert-if-absent: re-running a sync with an unchanged
// remote item set inserts no duplicate rows and no duplicate tag
// associations, and never rewrites the favorite or notes of an item
// that is already stored. Each upsert commits independently; a run
// that fails midway keeps the items already upserted.
func (l *Library) SyncProvider(ctx context.Context, providerName string, items []Insertable) (SyncStats, error) {
	providerID, err := l.ProviderID(providerName)
	if err != nil {
		return SyncStats{}, err
	}

	logger := Log.Named("sync").With(zap.String("provider", providerName))

	start := time.Now()
	var stats SyncStats
	for _, ins := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item := ins.ResearchItem()
		tags := ins.ItemTags()

		_, inserted, tagFailures, err := l.UpsertItem(ctx, item, tags, providerID)
		if err != nil {
			return stats, fmt.Errorf("upserting %q: %w", item.URI, err)
		}

		stats.Total++
		stats.TagFailures += tagFailures
		if inserted {
			stats.Inserted++
		} else {
			stats.Existing++
			logger.Debug("item already stored; local state untouched", zap.String("uri", item.URI))
		}
	}

	logger.Info("sync complete",
		zap.Int("total", stats.Total),
		zap.Int("inserted", stats.Inserted),
		zap.Int("existing", stats.Existing),
		zap.Int("tag_failures", stats.TagFailures),
		zap.Duration("duration", time.Since(start)))

	return stats, nil
}

// UpsertItem persists one item and its tags under providerID with
// insert-if-absent semantics. It returns the item's row ID, whether
// a new row was inserted, and how many tag associations failed.
//
// Tag upserts happen after the item insert and each tag name is
// inserted into the global tag set before its association, so an
// association never references a missing tag. A tag failure is
// recoverable: it is logged and the remaining tags proceed, leaving
// the item persisted with fewer tags than intended (a later re-sync
// fills them in, since associations are idempotent).
func (l *Library) UpsertItem(ctx context.Context, item Item, tags []Tag, providerID int64) (int64, bool, int, error) {
	l.dbMu.Lock()
	res, err := l.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO items (id, uri, title, excerpt, time_added, favorite, lang, provider_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.URI, item.Title, item.Excerpt, item.TimeAdded, item.Favorite, item.Lang, providerID)
	l.dbMu.Unlock()
	if err != nil {
		return 0, false, 0, fmt.Errorf("inserting item row: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, 0, fmt.Errorf("counting affected rows: %w", err)
	}
	inserted := affected > 0

	rowID, err := l.resolveItemRowID(ctx, item, providerID, res, inserted)
	if err != nil {
		return 0, inserted, 0, err
	}

	var tagFailures int
	for _, tag := range tags {
		if err := l.associateTag(ctx, rowID, tag); err != nil {
			tagFailures++
			Log.Named("sync").Warn("tag association failed; continuing",
				zap.Int64("item_id", rowID),
				zap.String("tag", tag.Name),
				zap.Error(err))
		}
	}

	return rowID, inserted, tagFailures, nil
}

// resolveItemRowID finds the row ID the item ended up with, whether
// this call inserted it or a previous sync did.
func (l *Library) resolveItemRowID(ctx context.Context, item Item, providerID int64, res sql.Result, inserted bool) (int64, error) {
	if item.ID != nil {
		return *item.ID, nil
	}
	if inserted {
		rowID, err := res.LastInsertId()
		if err == nil {
			return rowID, nil
		}
	}
	l.dbMu.RLock()
	var rowID int64
	err := l.db.QueryRowContext(ctx, `SELECT id FROM items WHERE uri=? AND provider_id=? LIMIT 1`,
		item.URI, providerID).Scan(&rowID)
	l.dbMu.RUnlock()
	if err != nil {
		return 0, fmt.Errorf("resolving item row ID for %q: %w", item.URI, err)
	}
	return rowID, nil
}

func (l *Library) associateTag(ctx context.Context, itemID int64, tag Tag) error {
	l.dbMu.Lock()
	defer l.dbMu.Unlock()

	_, err := l.db.ExecContext(ctx, `INSERT OR IGNORE INTO tags (tag_name) VALUES (?)`, tag.Name)
	if err != nil {
		return fmt.Errorf("upserting tag: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `INSERT OR IGNORE INTO item_tags (item_id, tag_name) VALUES (?, ?)`,
		itemID, tag.Name)
	if err != nil {
		return fmt.Errorf("associating tag: %w", err)
	}
	return nil
}

// MarkFavorite flips the locally stored favorite flag of an item.
// This is the only path that mutates favorite after insertion; bulk
// sync never does. Marking an item with its current value is a no-op
// observably.
func (l *Library) MarkFavorite(ctx context.Context, itemID int64, mark bool) error {
	l.dbMu.Lock()
	res, err := l.db.ExecContext(ctx, `UPDATE items SET favorite=? WHERE id=?`, mark, itemID)
	l.dbMu.Unlock()
	if err != nil {
		return fmt.Errorf("updating favorite flag: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no item with ID %d", itemID)
	}
	return nil
}

// SetNotes updates the local-only notes of an item. An empty string
// clears them.
func (l *Library) SetNotes(ctx context.Context, itemID int64, notes string) error {
	l.dbMu.Lock()
	res, err := l.db.ExecContext(ctx, `UPDATE items SET notes=? WHERE id=?`, nullIfEmpty(notes), itemID)
	l.dbMu.Unlock()
	if err != nil {
		return fmt.Errorf("updating notes: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no item with ID %d", itemID)
	}
	return nil
}

// ItemIDByURI resolves an item by its URI, across providers.
func (l *Library) ItemIDByURI(ctx context.Context, uri string) (int64, error) {
	l.dbMu.RLock()
	var id int64
	err := l.db.QueryRowContext(ctx, `SELECT id FROM items WHERE uri=? LIMIT 1`, uri).Scan(&id)
	l.dbMu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no item with URI %q", uri)
	}
	if err != nil {
		return 0, fmt.Errorf("querying item by URI: %w", err)
	}
	return id, nil
}
