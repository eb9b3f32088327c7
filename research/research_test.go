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
	"path/filepath"
	"testing"
)

func init() {
	// provider rows are seeded from the registry at provision time,
	// so the tests need a couple of registered names to work with
	for _, p := range []Provider{
		{Name: "testremote", Title: "Test Remote"},
		{Name: "testlocal", Title: "Test Local"},
	} {
		if err := RegisterProvider(p); err != nil {
			panic(err)
		}
	}
}

func newTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Create(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("creating library: %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	return lib
}

func TestCreateAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lib, err := Create(ctx, dir)
	if err != nil {
		t.Fatalf("creating library: %v", err)
	}
	firstID := lib.id
	if err := lib.Close(); err != nil {
		t.Fatalf("closing library: %v", err)
	}

	reopened, err := Open(ctx, filepath.Join(dir, DBFilename))
	if err != nil {
		t.Fatalf("reopening library: %v", err)
	}
	defer reopened.Close()

	if reopened.id != firstID {
		t.Errorf("library ID changed across reopen: %s != %s", reopened.id, firstID)
	}
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), DBFilename))
	if err == nil {
		t.Fatal("expected error opening nonexistent library, got none")
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	lib, err := Create(ctx, dir)
	if err != nil {
		t.Fatalf("creating library: %v", err)
	}
	firstID := lib.id
	lib.Close()

	again, err := Create(ctx, dir)
	if err != nil {
		t.Fatalf("re-creating library: %v", err)
	}
	defer again.Close()

	if again.id != firstID {
		t.Errorf("re-provisioning changed the library ID: %s != %s", again.id, firstID)
	}

	var count int
	if err := again.db.QueryRow(`SELECT COUNT(*) FROM providers`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if want := len(AllProviders()); count != want {
		t.Errorf("expected %d provider rows but got %d", want, count)
	}
}

func TestProviderIDs(t *testing.T) {
	lib := newTestLibrary(t)

	for _, prov := range AllProviders() {
		id, err := lib.ProviderID(prov.Name)
		if err != nil {
			t.Errorf("provider %s: unexpected error: %v", prov.Name, err)
		}
		if id == 0 {
			t.Errorf("provider %s: expected nonzero row ID", prov.Name)
		}
	}

	_, err := lib.ProviderID("does-not-exist")
	if err == nil {
		t.Fatal("expected error for unknown provider, got none")
	}
	var unknownErr UnknownProviderError
	if !errors.As(err, &unknownErr) {
		t.Errorf("expected UnknownProviderError but got %T", err)
	}
}

func TestSecretsRoundTrip(t *testing.T) {
	ctx := context.Background()
	lib := newTestLibrary(t)

	// a fresh library has an empty secrets row
	s, err := lib.Secrets(ctx)
	if err != nil {
		t.Fatalf("reading fresh secrets: %v", err)
	}
	if s.PocketConsumerKey != "" || s.PocketAccessToken != "" {
		t.Errorf("expected empty secrets but got %+v", s)
	}

	want := Secrets{
		PocketConsumerKey: "ck-123",
		PocketAccessToken: "at-456",
		UserID:            DefaultUserID,
	}
	if err := lib.SetSecrets(ctx, want); err != nil {
		t.Fatalf("storing secrets: %v", err)
	}

	got, err := lib.Secrets(ctx)
	if err != nil {
		t.Fatalf("reading secrets back: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v but got %+v", want, got)
	}
}
