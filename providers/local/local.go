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

// Package local implements the manual-entry provider. It has no
// remote service: items exist only through direct adds, so the
// provider registers without a remote client and exists so that
// locally saved items get their own storage partition.
package local

import (
	"github.com/researchly/research/research"
	"go.uber.org/zap"
)

// ProviderName is the registered name of this provider.
const ProviderName = "local"

func init() {
	err := research.RegisterProvider(research.Provider{
		Name:  ProviderName,
		Title: "Local",
	})
	if err != nil {
		research.Log.Fatal("registering provider", zap.Error(err))
	}
}

// Item is a manually saved entry, usually assembled from user input
// plus scraped page metadata.
type Item struct {
	// ID is a remote-assigned identity when the entry was pushed to
	// a remote service on the way in (the URL-handler path); nil
	// otherwise, letting storage assign one.
	ID *int64

	URI       string
	Title     string
	Excerpt   string
	TimeAdded int64
	Tags      []research.Tag
}

// ResearchItem normalizes the entry into the canonical model.
// Local entries are never born favorite.
func (it Item) ResearchItem() research.Item {
	title := it.Title
	if title == "" {
		title = research.FallbackTitle
	}
	lang := "en"
	return research.Item{
		ID:        it.ID,
		URI:       it.URI,
		Title:     title,
		Excerpt:   it.Excerpt,
		TimeAdded: it.TimeAdded,
		Lang:      &lang,
	}
}

// ItemTags returns the entry's tags.
func (it Item) ItemTags() []research.Tag { return it.Tags }
