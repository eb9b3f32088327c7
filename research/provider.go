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
	"errors"
	"fmt"
	"sort"
)

// Provider describes a registered source of items.
type Provider struct {
	// A snake_cased name that uniquely identifies the provider.
	// This is NOT the same primary key used in the DB.
	Name string `json:"name"`

	// The human-readable or brand name of the service.
	Title string `json:"title"`

	// NewRemote constructs a client for the provider's remote API
	// using the given credentials. Nil for purely local providers,
	// whose items arrive only through direct adds.
	NewRemote func(Secrets) (Remote, error) `json:"-"`
}

// Remote is the capability set of a provider backed by a hosted
// service. Implementations must honor context cancellation on all
// network calls.
type Remote interface {
	// Authenticate performs the provider's authorization handshake
	// and returns the credentials to persist. It may block for user
	// interaction (e.g. confirming an authorization URL).
	Authenticate(ctx context.Context) (Secrets, error)

	// FetchItems retrieves the provider's saved items. A limit > 0
	// bounds the result to exactly that many items; 0 means all.
	FetchItems(ctx context.Context, limit int) ([]Insertable, error)

	// AddItem pushes a new item to the remote service and returns
	// the remote-assigned ID, if the service provides one.
	AddItem(ctx context.Context, uri string, tags []string) (*int64, error)

	// MarkFavorite pushes a favorite-state change to the remote
	// service. It does not update local storage; that is the
	// caller's responsibility.
	MarkFavorite(ctx context.Context, itemID int64, mark bool) error
}

// Insertable is a fetched record that can normalize itself into the
// canonical model. Providers keep their own wire types and implement
// this to feed the sync engine.
type Insertable interface {
	ResearchItem() Item
	ItemTags() []Tag
}

// RegisterProvider registers p as a provider.
func RegisterProvider(p Provider) error {
	if p.Name == "" {
		return errors.New("missing name")
	}
	if p.Title == "" {
		return errors.New("missing title")
	}
	if _, ok := providers[p.Name]; ok {
		return fmt.Errorf("provider already registered: %s", p.Name)
	}
	providers[p.Name] = p
	return nil
}

// GetProvider gets the provider with the given name (not database row ID).
func GetProvider(name string) (Provider, error) {
	if p, ok := providers[name]; ok {
		return p, nil
	}
	return Provider{}, UnknownProviderError{Name: name}
}

// AllProviders returns all registered providers sorted by name.
func AllProviders() []Provider {
	all := make([]Provider, 0, len(providers))
	for _, p := range providers {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	return all
}

var providers = make(map[string]Provider) // keyed by name (not DB row ID)
