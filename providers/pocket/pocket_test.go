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
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestAuthenticate(t *testing.T) {
	var gotAuthorizeCode string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/oauth/request":
			var body oauthRequestBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding request body: %v", err)
			}
			if body.ConsumerKey != "ck" {
				t.Errorf("expected consumer key ck but got %s", body.ConsumerKey)
			}
			fmt.Fprint(w, `{"code":"req-code","state":"research"}`)
		case "/v3/oauth/authorize":
			var body oauthAuthorizeBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding authorize body: %v", err)
			}
			gotAuthorizeCode = body.Code
			fmt.Fprint(w, `{"access_token":"tok","username":"someone"}`)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	var confirmedURL string
	client := NewClient("ck", "")
	client.BaseURL = ts.URL
	client.HTTPClient = ts.Client()
	client.Confirm = func(authURL string) error {
		confirmedURL = authURL
		return nil
	}

	secrets, err := client.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(confirmedURL, "request_token=req-code") {
		t.Errorf("authorization URL missing request token: %s", confirmedURL)
	}
	if gotAuthorizeCode != "req-code" {
		t.Errorf("expected authorize to send req-code but got %q", gotAuthorizeCode)
	}
	if secrets.PocketConsumerKey != "ck" || secrets.PocketAccessToken != "tok" {
		t.Errorf("unexpected secrets: %+v", secrets)
	}
	if client.AccessToken != "tok" {
		t.Errorf("expected client to adopt the token, got %q", client.AccessToken)
	}
}

func TestAddItem(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/add" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body addRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding add body: %v", err)
		}
		if body.URL != "https://example.com/article" {
			t.Errorf("unexpected url: %s", body.URL)
		}
		if body.Tags != "go,databases" {
			t.Errorf("expected comma-joined tags but got %q", body.Tags)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"item":{"item_id":"4242"},"status":1}`)
	}))
	defer ts.Close()

	client := NewClient("ck", "at")
	client.BaseURL = ts.URL
	client.HTTPClient = ts.Client()

	id, err := client.AddItem(context.Background(), "https://example.com/article", []string{"go", "databases"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == nil || *id != 4242 {
		t.Errorf("expected item ID 4242 but got %v", id)
	}
}

func TestMarkFavorite(t *testing.T) {
	for i, tc := range []struct {
		mark         bool
		expectAction string
	}{
		{mark: true, expectAction: "favorite"},
		{mark: false, expectAction: "unfavorite"},
	} {
		var gotBody sendRequestBody
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v3/send" {
				t.Errorf("Test %d: unexpected path: %s", i, r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
				t.Errorf("Test %d: decoding send body: %v", i, err)
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"action_results":[true],"status":1}`)
		}))

		client := NewClient("ck", "at")
		client.BaseURL = ts.URL
		client.HTTPClient = ts.Client()

		err := client.MarkFavorite(context.Background(), 123, tc.mark)
		ts.Close()
		if err != nil {
			t.Fatalf("Test %d: unexpected error: %v", i, err)
		}

		if len(gotBody.Actions) != 1 {
			t.Fatalf("Test %d: expected 1 action but got %d", i, len(gotBody.Actions))
		}
		if gotBody.Actions[0].Action != tc.expectAction {
			t.Errorf("Test %d: expected action %s but got %s", i, tc.expectAction, gotBody.Actions[0].Action)
		}
		if gotBody.Actions[0].ItemID != "123" {
			t.Errorf("Test %d: expected item_id 123 but got %s", i, gotBody.Actions[0].ItemID)
		}
	}
}

func TestPostJSONNon2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Error", "invalid consumer key")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	client := NewClient("ck", "at")
	client.BaseURL = ts.URL
	client.HTTPClient = ts.Client()

	if _, err := client.AddItem(context.Background(), "https://example.com", nil); err == nil {
		t.Fatal("expected error but got none")
	}
}
