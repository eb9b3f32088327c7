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
	"fmt"
	"strings"
)

// ListOptions filters item listings. Zero value lists everything,
// newest first.
type ListOptions struct {
	// Only items carrying at least one of these tags.
	Tags []string

	// Only favorites.
	FavoriteOnly bool

	// Only items from this provider (by name).
	Provider string

	// Truncate the result to this many items; 0 means no limit.
	Limit int
}

// Items lists stored items sorted by time added, newest first.
func (l *Library) Items(ctx context.Context, opt ListOptions) ([]Item, error) {
	q := `SELECT DISTINCT items.id, items.uri, items.title, items.excerpt,
			items.time_added, items.favorite, items.lang, items.notes
		FROM items`
	var args []any

	if len(opt.Tags) > 0 {
		q += ` JOIN item_tags ON item_tags.item_id = items.id`
	}

	var conds []string
	if len(opt.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opt.Tags)), ",")
		conds = append(conds, `item_tags.tag_name IN (`+placeholders+`)`)
		for _, tag := range opt.Tags {
			args = append(args, tag)
		}
	}
	if opt.FavoriteOnly {
		conds = append(conds, `items.favorite=1`)
	}
	if opt.Provider != "" {
		providerID, err := l.ProviderID(opt.Provider)
		if err != nil {
			return nil, err
		}
		conds = append(conds, `items.provider_id=?`)
		args = append(args, providerID)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}

	q += ` ORDER BY items.time_added DESC`
	if opt.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opt.Limit)
	}

	l.dbMu.RLock()
	defer l.dbMu.RUnlock()

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.URI, &it.Title, &it.Excerpt,
			&it.TimeAdded, &it.Favorite, &it.Lang, &it.Notes); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}
	return items, nil
}

// ItemTags returns the tags attached to one item.
func (l *Library) ItemTags(ctx context.Context, itemID int64) ([]Tag, error) {
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()

	rows, err := l.db.QueryContext(ctx,
		`SELECT tag_name FROM item_tags WHERE item_id=? ORDER BY tag_name`, itemID)
	if err != nil {
		return nil, fmt.Errorf("querying item tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.Name); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}
	return tags, nil
}

// AllTags returns the global tag set, sorted by name.
func (l *Library) AllTags(ctx context.Context) ([]Tag, error) {
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()

	rows, err := l.db.QueryContext(ctx, `SELECT tag_name FROM tags ORDER BY tag_name`)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var tag Tag
		if err := rows.Scan(&tag.Name); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tag rows: %w", err)
	}
	return tags, nil
}

// ItemsWithTags returns every item paired with its tag set, newest
// first. This is the read path feeding site generation and export.
func (l *Library) ItemsWithTags(ctx context.Context) ([]TaggedItem, error) {
	items, err := l.Items(ctx, ListOptions{})
	if err != nil {
		return nil, err
	}

	tagged := make([]TaggedItem, 0, len(items))
	for _, it := range items {
		tags, err := l.ItemTags(ctx, *it.ID)
		if err != nil {
			return nil, err
		}
		tagged = append(tagged, TaggedItem{Item: it, Tags: tags})
	}
	return tagged, nil
}
