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

// Package site renders the stored library as a static site: an index
// page of all items and a search page carrying a JSON payload for
// client-side search.
package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/goccy/go-json"
	"github.com/researchly/research/research"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Title is the site's displayed name.
const Title = "Research"

// RequiredAssets are the files the assets directory must provide.
// Building them (the Tailwind pipeline) is not this package's job;
// they are copied into the output as-is.
var RequiredAssets = []string{"main.css", "search.js"}

// Site is a rendered pair of pages, ready to write.
type Site struct {
	IndexHTML  []byte
	SearchHTML []byte
}

type pageData struct {
	Title     string
	AssetsDir string
	Tags      []string
	Items     []itemView
	// SearchPayload is the JSON the search page embeds, empty on
	// other pages.
	SearchPayload template.JS
}

type itemView struct {
	research.Item
	Tags      []string
	AddedText string
}

// Build renders the site from the library's items and tag set. The
// timezone is passed explicitly so rendering stays a pure function
// of its arguments; nil means UTC.
func Build(tags []research.Tag, items []research.TaggedItem, loc *time.Location) (Site, error) {
	tmpl, err := template.New("site").Funcs(sprig.FuncMap()).ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return Site{}, fmt.Errorf("parsing templates: %w", err)
	}

	views := make([]itemView, 0, len(items))
	for _, ti := range items {
		views = append(views, itemView{
			Item:      ti.Item,
			Tags:      research.TagNames(ti.Tags),
			AddedText: ti.Item.DisplayTime(loc),
		})
	}

	data := pageData{
		Title:     Title,
		AssetsDir: "assets",
		Tags:      research.TagNames(tags),
		Items:     views,
	}

	var index bytes.Buffer
	if err := tmpl.ExecuteTemplate(&index, "index.html.tmpl", data); err != nil {
		return Site{}, fmt.Errorf("rendering index page: %w", err)
	}

	payload, err := json.Marshal(views)
	if err != nil {
		return Site{}, fmt.Errorf("encoding search payload: %w", err)
	}
	data.Title = "Search"
	data.SearchPayload = template.JS(payload)

	var search bytes.Buffer
	if err := tmpl.ExecuteTemplate(&search, "search.html.tmpl", data); err != nil {
		return Site{}, fmt.Errorf("rendering search page: %w", err)
	}

	return Site{IndexHTML: index.Bytes(), SearchHTML: search.Bytes()}, nil
}

// Write writes the rendered pages into outputDir and copies the
// required files from assetsDir into outputDir/assets. An empty
// assetsDir skips the copy, leaving the pages unstyled.
func (s Site) Write(outputDir, assetsDir string) error {
	if err := os.MkdirAll(filepath.Join(outputDir, "assets"), 0o755); err != nil {
		return fmt.Errorf("making output directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(outputDir, "index.html"), s.IndexHTML, 0o644); err != nil {
		return fmt.Errorf("writing index page: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "search.html"), s.SearchHTML, 0o644); err != nil {
		return fmt.Errorf("writing search page: %w", err)
	}

	if assetsDir == "" {
		return nil
	}
	for _, name := range RequiredAssets {
		data, err := os.ReadFile(filepath.Join(assetsDir, name))
		if err != nil {
			return fmt.Errorf("missing required asset: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outputDir, "assets", name), data, 0o644); err != nil {
			return fmt.Errorf("copying asset %s: %w", name, err)
		}
	}

	return nil
}
