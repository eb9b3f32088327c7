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

package pocket

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/researchly/research/research"
)

// The retrieve API is loosely typed: integers and booleans arrive as
// strings (sometimes as numbers), timestamps are numeric strings
// where "0" means unset, and list-shaped fields come back as either
// a JSON array or an object keyed by item ID. The wire types below
// absorb those shapes so that one malformed field fails only its own
// record, never the page.

// wireInt accepts a JSON number or a numeric string.
type wireInt int64

func (w *wireInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*w = wireInt(n)
	return nil
}

// wireBool accepts the strings "0" and "1" only.
type wireBool bool

func (w *wireBool) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("flag is not a string: %s", data)
	}
	switch s {
	case "0":
		*w = false
	case "1":
		*w = true
	default:
		return fmt.Errorf(`flag must be "0" or "1", got %q`, s)
	}
	return nil
}

// wireTime accepts a unix-seconds value as a string or number, where
// "0", null, or absence all mean "no value".
type wireTime struct {
	t time.Time
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "0" {
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp is not unix seconds: %s", data)
	}
	w.t = time.Unix(secs, 0).UTC()
	return nil
}

func (w wireTime) IsZero() bool    { return w.t.IsZero() }
func (w wireTime) Time() time.Time { return w.t }

// wireURL parses best-effort: a string that is not an absolute URL
// decodes to nothing rather than failing the record.
type wireURL struct {
	u *url.URL
}

func (w *wireURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("URL is not a string: %s", data)
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil
	}
	w.u = u
	return nil
}

// URL returns the parsed URL, or nil if none survived decoding.
func (w wireURL) URL() *url.URL { return w.u }

// ItemTag is one tag attached to a retrieved item.
type ItemTag struct {
	ItemID wireInt `json:"item_id"`
	Tag    string  `json:"tag"`
}

// tagList decodes from either a JSON array of tags or an object
// mapping arbitrary keys to tags. The object keys carry no meaning,
// so the object form yields key-sorted order; this is lossy relative
// to any order the service intended.
type tagList []ItemTag

func (tl *tagList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var arr []ItemTag
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return fmt.Errorf("decoding tag array: %w", err)
		}
		*tl = arr
		return nil
	case '{':
		var m map[string]ItemTag
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return fmt.Errorf("decoding tag object: %w", err)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tags := make(tagList, 0, len(m))
		for _, k := range keys {
			tags = append(tags, m[k])
		}
		*tl = tags
		return nil
	default:
		return fmt.Errorf("tags must be an array or object, got: %s", preview(trimmed))
	}
}

// Item is one record from the retrieve API.
type Item struct {
	ItemID        wireInt   `json:"item_id"`
	GivenURL      wireURL   `json:"given_url"`
	GivenTitle    string    `json:"given_title"`
	ResolvedTitle string    `json:"resolved_title"`
	ResolvedURL   wireURL   `json:"resolved_url"`
	Excerpt       string    `json:"excerpt"`
	Favorite      *wireBool `json:"favorite"`
	Lang          string    `json:"lang"`
	TimeAdded     wireTime  `json:"time_added"`
	TimeRead      wireTime  `json:"time_read"`
	TimeUpdated   wireTime  `json:"time_updated"`
	Tags          tagList   `json:"tags"`
}

// uri returns the item's locator, preferring the URL the user saved
// over the one the service resolved. Items that carry neither are
// rejected at decode time, so a decoded Item always has one.
func (it Item) uri() *url.URL {
	if it.GivenURL.URL() != nil {
		return it.GivenURL.URL()
	}
	return it.ResolvedURL.URL()
}

// validate enforces the fields tolerant decoding cannot default:
// the provider identity and a usable URI. A missing URI is its own
// error rather than a placeholder, so distinct broken records never
// collide on the dedup key.
func (it Item) validate() error {
	if it.ItemID == 0 {
		return fmt.Errorf("missing item_id")
	}
	if it.uri() == nil {
		return fmt.Errorf("neither given_url nor resolved_url is a usable URL")
	}
	return nil
}

// ResearchItem normalizes the record into the canonical model.
func (it Item) ResearchItem() research.Item {
	id := int64(it.ItemID)

	added := it.TimeAdded.Time()
	if added.IsZero() {
		added = time.Now()
	}

	var favorite bool
	if it.Favorite != nil {
		favorite = bool(*it.Favorite)
	}

	var lang *string
	if it.Lang != "" {
		lang = &it.Lang
	}

	return research.Item{
		ID:        &id,
		URI:       it.uri().String(),
		Title:     research.NormalizeTitle(it.GivenTitle, it.ResolvedTitle),
		Excerpt:   it.Excerpt,
		TimeAdded: added.Unix(),
		Favorite:  favorite,
		Lang:      lang,
	}
}

// ItemTags returns the item's tags as canonical tags.
func (it Item) ItemTags() []research.Tag {
	tags := make([]research.Tag, 0, len(it.Tags))
	for _, t := range it.Tags {
		tags = append(tags, research.Tag{Name: t.Tag})
	}
	return tags
}

// decodeItem decodes one raw record, identifying the offending
// field(s) when it fails.
func decodeItem(key string, raw json.RawMessage) (Item, error) {
	var it Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return Item{}, research.ItemDecodeError{Key: key, Fields: badFields(raw), Err: err}
	}
	if err := it.validate(); err != nil {
		return Item{}, research.ItemDecodeError{Key: key, Err: err}
	}
	return it, nil
}

// badFields probes a malformed record field by field so the log can
// name what broke instead of dumping the whole payload.
func badFields(raw json.RawMessage) []string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var bad []string
	for _, k := range keys {
		probe, err := json.Marshal(map[string]json.RawMessage{k: fields[k]})
		if err != nil {
			continue
		}
		var it Item
		if err := json.Unmarshal(probe, &it); err != nil {
			bad = append(bad, k)
		}
	}
	return bad
}

func preview(data []byte) string {
	const max = 120
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
