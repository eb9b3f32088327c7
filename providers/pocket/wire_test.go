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
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/researchly/research/research"
)

func TestWireInt(t *testing.T) {
	for i, tc := range []struct {
		input     string
		expect    wireInt
		shouldErr bool
	}{
		{input: `42`, expect: 42},
		{input: `"42"`, expect: 42},
		{input: `"0"`, expect: 0},
		{input: `null`, expect: 0},
		{input: `"-7"`, expect: -7},
		{input: `"forty-two"`, shouldErr: true},
		{input: `true`, shouldErr: true},
		{input: `3.5`, shouldErr: true},
	} {
		var got wireInt
		err := json.Unmarshal([]byte(tc.input), &got)
		if tc.shouldErr && err == nil {
			t.Errorf("Test %d (%s): expected error but got none", i, tc.input)
		}
		if !tc.shouldErr && err != nil {
			t.Errorf("Test %d (%s): unexpected error: %v", i, tc.input, err)
		}
		if err == nil && got != tc.expect {
			t.Errorf("Test %d (%s): expected %d but got %d", i, tc.input, tc.expect, got)
		}
	}
}

func TestWireBool(t *testing.T) {
	for i, tc := range []struct {
		input     string
		expect    wireBool
		shouldErr bool
	}{
		{input: `"0"`, expect: false},
		{input: `"1"`, expect: true},
		{input: `"yes"`, shouldErr: true},
		{input: `"true"`, shouldErr: true},
		{input: `1`, shouldErr: true},
		{input: `true`, shouldErr: true},
	} {
		var got wireBool
		err := json.Unmarshal([]byte(tc.input), &got)
		if tc.shouldErr && err == nil {
			t.Errorf("Test %d (%s): expected error but got none", i, tc.input)
		}
		if !tc.shouldErr && err != nil {
			t.Errorf("Test %d (%s): unexpected error: %v", i, tc.input, err)
		}
		if err == nil && got != tc.expect {
			t.Errorf("Test %d (%s): expected %t but got %t", i, tc.input, tc.expect, got)
		}
	}
}

func TestWireTime(t *testing.T) {
	for i, tc := range []struct {
		input      string
		expectZero bool
		expect     time.Time
		shouldErr  bool
	}{
		{input: `"0"`, expectZero: true},
		{input: `""`, expectZero: true},
		{input: `null`, expectZero: true},
		{input: `"1700000000"`, expect: time.Unix(1700000000, 0).UTC()},
		{input: `1700000000`, expect: time.Unix(1700000000, 0).UTC()},
		{input: `"not-a-time"`, shouldErr: true},
	} {
		var got wireTime
		err := json.Unmarshal([]byte(tc.input), &got)
		if tc.shouldErr {
			if err == nil {
				t.Errorf("Test %d (%s): expected error but got none", i, tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d (%s): unexpected error: %v", i, tc.input, err)
			continue
		}
		if got.IsZero() != tc.expectZero {
			t.Errorf("Test %d (%s): expected IsZero=%t but got %t", i, tc.input, tc.expectZero, got.IsZero())
		}
		if !tc.expectZero && !got.Time().Equal(tc.expect) {
			t.Errorf("Test %d (%s): expected %v but got %v", i, tc.input, tc.expect, got.Time())
		}
	}
}

func TestWireURLBestEffort(t *testing.T) {
	for i, tc := range []struct {
		input     string
		expect    string // "" means nil URL
		shouldErr bool
	}{
		{input: `"https://example.com/a"`, expect: "https://example.com/a"},
		{input: `"not a url at all"`, expect: ""},
		{input: `"/relative/path"`, expect: ""},
		{input: `""`, expect: ""},
		{input: `12345`, shouldErr: true},
	} {
		var got wireURL
		err := json.Unmarshal([]byte(tc.input), &got)
		if tc.shouldErr {
			if err == nil {
				t.Errorf("Test %d (%s): expected error but got none", i, tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d (%s): unexpected error: %v", i, tc.input, err)
			continue
		}
		if tc.expect == "" {
			if got.URL() != nil {
				t.Errorf("Test %d (%s): expected nil URL but got %s", i, tc.input, got.URL())
			}
		} else if got.URL() == nil || got.URL().String() != tc.expect {
			t.Errorf("Test %d (%s): expected %s but got %v", i, tc.input, tc.expect, got.URL())
		}
	}
}

func TestTagListShapes(t *testing.T) {
	arrayForm := `[{"item_id":"1","tag":"go"},{"item_id":"1","tag":"databases"}]`
	objectForm := `{"go":{"item_id":"1","tag":"go"},"databases":{"item_id":"1","tag":"databases"}}`

	var fromArray, fromObject tagList
	if err := json.Unmarshal([]byte(arrayForm), &fromArray); err != nil {
		t.Fatalf("decoding array form: %v", err)
	}
	if err := json.Unmarshal([]byte(objectForm), &fromObject); err != nil {
		t.Fatalf("decoding object form: %v", err)
	}

	if len(fromArray) != 2 || len(fromObject) != 2 {
		t.Fatalf("expected 2 tags each, got %d and %d", len(fromArray), len(fromObject))
	}

	// the object form sorts by key, which here matches the natural order
	expectOrder := []string{"databases", "go"}
	for i, want := range expectOrder {
		if fromObject[i].Tag != want {
			t.Errorf("object form tag %d: expected %s but got %s", i, want, fromObject[i].Tag)
		}
	}

	// the array form preserves wire order
	if fromArray[0].Tag != "go" || fromArray[1].Tag != "databases" {
		t.Errorf("array form lost wire order: %v", fromArray)
	}

	var fromString tagList
	if err := json.Unmarshal([]byte(`"go"`), &fromString); err == nil {
		t.Error("expected error decoding scalar tag list, got none")
	}
}

func TestTagListAbsenceForms(t *testing.T) {
	// empty object, null, and an absent field all mean no tags
	for i, payload := range []string{
		`{"item_id":"1","given_url":"https://example.com","tags":{}}`,
		`{"item_id":"1","given_url":"https://example.com","tags":null}`,
		`{"item_id":"1","given_url":"https://example.com"}`,
	} {
		it, err := decodeItem("1", json.RawMessage(payload))
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if len(it.ItemTags()) != 0 {
			t.Errorf("Test %d: expected no tags but got %v", i, it.ItemTags())
		}
	}
}

func TestItemTitleFallback(t *testing.T) {
	for i, tc := range []struct {
		given    string
		resolved string
		expect   string
	}{
		{given: "Given", resolved: "Resolved", expect: "Given"},
		{given: "", resolved: "Resolved", expect: "Resolved"},
		{given: "", resolved: "", expect: research.FallbackTitle},
	} {
		it := Item{
			ItemID:        1,
			GivenTitle:    tc.given,
			ResolvedTitle: tc.resolved,
		}
		if err := json.Unmarshal([]byte(`"https://example.com"`), &it.GivenURL); err != nil {
			t.Fatal(err)
		}
		if got := it.ResearchItem().Title; got != tc.expect {
			t.Errorf("Test %d: expected title %q but got %q", i, tc.expect, got)
		}
	}
}

func TestItemURIFallback(t *testing.T) {
	payload := `{
		"item_id": "99",
		"given_url": "not a url",
		"resolved_url": "https://example.com/resolved",
		"resolved_title": "Resolved"
	}`
	it, err := decodeItem("99", json.RawMessage(payload))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got := it.ResearchItem().URI; got != "https://example.com/resolved" {
		t.Errorf("expected resolved URL but got %s", got)
	}
}

func TestDecodeItemErrors(t *testing.T) {
	for i, tc := range []struct {
		name      string
		payload   string
		expectBad []string
	}{
		{
			name:      "bad favorite flag",
			payload:   `{"item_id":"1","given_url":"https://example.com","favorite":"yes"}`,
			expectBad: []string{"favorite"},
		},
		{
			name:    "missing item_id",
			payload: `{"given_url":"https://example.com"}`,
		},
		{
			name:    "no usable URL",
			payload: `{"item_id":"2","given_url":"nope","resolved_url":"also nope"}`,
		},
	} {
		_, err := decodeItem("k", json.RawMessage(tc.payload))
		if err == nil {
			t.Errorf("Test %d (%s): expected error but got none", i, tc.name)
			continue
		}
		var decodeErr research.ItemDecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("Test %d (%s): expected ItemDecodeError but got %T", i, tc.name, err)
			continue
		}
		if len(tc.expectBad) > 0 {
			if len(decodeErr.Fields) != len(tc.expectBad) {
				t.Errorf("Test %d (%s): expected bad fields %v but got %v", i, tc.name, tc.expectBad, decodeErr.Fields)
				continue
			}
			for j, f := range tc.expectBad {
				if decodeErr.Fields[j] != f {
					t.Errorf("Test %d (%s): expected bad field %s but got %s", i, tc.name, f, decodeErr.Fields[j])
				}
			}
		}
	}
}

func TestItemDefaults(t *testing.T) {
	payload := `{
		"item_id": "7",
		"given_url": "https://example.com/x",
		"given_title": "X",
		"favorite": "1",
		"lang": "en",
		"time_added": "0"
	}`
	it, err := decodeItem("7", json.RawMessage(payload))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	before := time.Now().Unix()
	ri := it.ResearchItem()
	after := time.Now().Unix()

	if ri.ID == nil || *ri.ID != 7 {
		t.Errorf("expected ID 7 but got %v", ri.ID)
	}
	if !ri.Favorite {
		t.Error("expected favorite to be set")
	}
	if ri.Lang == nil || *ri.Lang != "en" {
		t.Errorf("expected lang en but got %v", ri.Lang)
	}
	// an unset time_added falls back to the fetch time
	if ri.TimeAdded < before || ri.TimeAdded > after {
		t.Errorf("expected TimeAdded near now but got %d", ri.TimeAdded)
	}
}
