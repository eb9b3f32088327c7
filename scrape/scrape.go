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

// Package scrape fetches best-effort page metadata for items saved
// without any richer source (manual adds and the URL-handler path).
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is what a web page says about itself.
type Metadata struct {
	Title       string
	Description string
}

// Fetch retrieves url and extracts its title and description. For
// HTML pages these come from the document; for anything else the
// filename and MIME type stand in. Absent fields come back empty,
// not as errors.
func Fetch(ctx context.Context, client *http.Client, url string) (Metadata, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/html") {
		mimeType, _, _ := strings.Cut(contentType, ";")
		return Metadata{
			Title:       path.Base(url),
			Description: "File type: " + strings.TrimSpace(mimeType),
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Metadata{}, fmt.Errorf("parsing %s: %w", url, err)
	}

	return Metadata{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: strings.TrimSpace(doc.Find(`meta[name="description"]`).First().AttrOr("content", "")),
	}, nil
}
