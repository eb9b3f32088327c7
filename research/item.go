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
	"fmt"
	"strings"
	"time"
)

// FallbackTitle is used when neither a given nor a resolved title
// survives normalization. Stored titles are never empty.
const FallbackTitle = "Untitled"

// Item is the canonical, provider-independent record of a saved
// research item. An Item is created by a provider from raw wire data
// or from direct user input, persisted once via upsert, and afterward
// mutated only through explicit local operations: bulk re-sync never
// touches an existing row.
type Item struct {
	// Row ID, or the provider-assigned ID for remote items.
	// Nil before first persistence.
	ID *int64 `json:"id,omitempty"`

	URI       string  `json:"uri"`
	Title     string  `json:"title"`
	Excerpt   string  `json:"excerpt"`
	TimeAdded int64   `json:"time_added"` // unix seconds
	Favorite  bool    `json:"favorite"`
	Lang      *string `json:"lang,omitempty"`

	// Notes is a local-only annotation. It is never sent to any
	// remote provider and never overwritten by sync.
	Notes *string `json:"notes,omitempty"`
}

// Added returns the item's creation time.
func (it Item) Added() time.Time { return time.Unix(it.TimeAdded, 0).UTC() }

// DisplayTime formats the time the item was added, in loc if given,
// of the format "21 Aug'21, 5pm".
func (it Item) DisplayTime(loc *time.Location) string {
	t := it.Added()
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02 Jan'06, 3pm")
}

func (it Item) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", it.Title)
	fmt.Fprintf(&sb, "URI: %s\n", it.URI)
	if it.Excerpt != "" {
		fmt.Fprintf(&sb, "Excerpt: %s\n", it.Excerpt)
	}
	fmt.Fprintf(&sb, "Added: %s\n", it.DisplayTime(nil))
	fmt.Fprintf(&sb, "Favorite: %t", it.Favorite)
	if it.Lang != nil {
		fmt.Fprintf(&sb, "\nLanguage: %s", *it.Lang)
	}
	if it.Notes != nil {
		fmt.Fprintf(&sb, "\nNotes: %s", *it.Notes)
	}
	return sb.String()
}

// NormalizeTitle implements the title preference chain: the given
// title if non-empty, else the resolved title if non-empty, else
// FallbackTitle.
func NormalizeTitle(given, resolved string) string {
	if given != "" {
		return given
	}
	if resolved != "" {
		return resolved
	}
	return FallbackTitle
}

// Tag is a label attached to items. Tags are global and deduplicated
// by name.
type Tag struct {
	Name string `json:"tag_name"`
}

// TagNames flattens tags to their names.
func TagNames(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return names
}

// MakeTags builds a tag list from names, dropping empties.
func MakeTags(names []string) []Tag {
	tags := make([]Tag, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tags = append(tags, Tag{Name: name})
	}
	return tags
}

// TaggedItem pairs an item with its tag set, for listing, export,
// and site generation.
type TaggedItem struct {
	Item Item  `json:"item"`
	Tags []Tag `json:"tags"`
}
