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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/researchly/research/research"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// pageSize is the maximum items per retrieve request.
	pageSize = 30

	// maxEmptyPages is how many consecutive empty pages signal
	// end-of-data. The API reports no total, so this streak is the
	// only termination heuristic.
	maxEmptyPages = 2

	// pacingInterval spaces out page requests. A courtesy to the
	// API, not a backoff.
	pacingInterval = 100 * time.Millisecond
)

type retrieveRequestBody struct {
	ConsumerKey string `json:"consumer_key"`
	AccessToken string `json:"access_token"`
	State       string `json:"state"`
	Sort        string `json:"sort"`
	DetailType  string `json:"detailType"`
	Count       int    `json:"count"`
	Offset      int    `json:"offset"`
}

// retrieveEnvelope is the top-level retrieve response: either a
// success carrying a list (object keyed by item ID, or array), or an
// error carrying a message.
type retrieveEnvelope struct {
	Error string          `json:"error"`
	List  json.RawMessage `json:"list"`
}

// FetchItems retrieves the account's saved items page by page until
// the empty-page streak signals end-of-data, or until limit items
// (if limit > 0) have accumulated.
//
// Error envelopes and individually malformed records are logged and
// skipped, never aborting the run; only transport failures and an
// undecodable envelope are terminal. Items already accumulated are
// in strict page order.
func (c *Client) FetchItems(ctx context.Context, limit int) ([]research.Insertable, error) {
	if err := c.requireCredentials(); err != nil {
		return nil, err
	}

	logger := c.logger().Named("fetch")
	logger.Info("starting to fetch items", zap.Int("limit", limit))

	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(pacingInterval), 1)
	}

	var all []research.Insertable
	var dropped int
	offset := 0
	emptyStreak := 0

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		logger.Debug("fetching page", zap.Int("offset", offset))

		env, err := c.retrievePage(ctx, offset)
		if err != nil {
			return nil, err
		}

		// the API is known to return recoverable per-page errors;
		// report and keep going rather than abort the whole run
		if env.Error != "" {
			logger.Warn("error envelope; continuing",
				zap.Int("offset", offset),
				zap.Error(research.EnvelopeError{Message: env.Error}))
			continue
		}
		if isEmptyJSON(env.List) {
			logger.Warn("response carried no item list; continuing", zap.Int("offset", offset))
			continue
		}

		items, pageDropped, err := decodePage(env.List, logger)
		if err != nil {
			return nil, err
		}
		dropped += pageDropped

		if len(items) == 0 {
			emptyStreak++
			logger.Debug("empty page", zap.Int("empty_streak", emptyStreak))
			if emptyStreak >= maxEmptyPages {
				break
			}
		} else {
			emptyStreak = 0
			for _, it := range items {
				all = append(all, it)
			}
		}

		offset += pageSize

		if limit > 0 && len(all) >= limit {
			all = all[:limit]
			break
		}
	}

	logger.Info("finished fetching items",
		zap.Int("total", len(all)),
		zap.Int("dropped", dropped))

	return all, nil
}

func (c *Client) retrievePage(ctx context.Context, offset int) (retrieveEnvelope, error) {
	raw, _, err := c.postRaw(ctx, "/v3/get", retrieveRequestBody{
		ConsumerKey: c.ConsumerKey,
		AccessToken: c.AccessToken,
		State:       "all",
		Sort:        "newest",
		DetailType:  "complete",
		Count:       pageSize,
		Offset:      offset,
	})
	if err != nil {
		return retrieveEnvelope{}, err
	}

	var env retrieveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return retrieveEnvelope{}, fmt.Errorf("parsing retrieve envelope %s: %w", preview(raw), err)
	}
	return env, nil
}

// decodePage decodes the item list of one success envelope. The list
// arrives as either an object keyed by item ID or an array; object
// entries are processed in key-sorted order. Each record decodes
// independently: one malformed item is dropped and logged, the rest
// of the page survives.
func decodePage(list json.RawMessage, logger *zap.Logger) ([]Item, int, error) {
	entries, err := listEntries(list)
	if err != nil {
		return nil, 0, err
	}

	items := make([]Item, 0, len(entries))
	var dropped int
	for _, entry := range entries {
		it, err := decodeItem(entry.key, entry.raw)
		if err != nil {
			dropped++
			logger.Warn("dropping malformed item",
				zap.Error(err),
				zap.String("raw", preview(entry.raw)))
			continue
		}
		items = append(items, it)
	}
	return items, dropped, nil
}

type listEntry struct {
	key string
	raw json.RawMessage
}

func listEntries(list json.RawMessage) ([]listEntry, error) {
	trimmed := bytes.TrimSpace(list)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("parsing item list object: %w", err)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]listEntry, 0, len(m))
		for _, k := range keys {
			entries = append(entries, listEntry{key: k, raw: m[k]})
		}
		return entries, nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, fmt.Errorf("parsing item list array: %w", err)
		}
		entries := make([]listEntry, 0, len(arr))
		for _, raw := range arr {
			entries = append(entries, listEntry{raw: raw})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("item list must be an object or array, got: %s", preview(trimmed))
	}
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
