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

// Package handler implements the research:// URL scheme so that a
// browser bookmarklet or OS-level protocol registration can save
// pages into the library with a single click.
//
// The only action currently defined is save:
//
//	research://save?url=<page>&provider=<name>&tags=<a,b>&db_path=<path>
//
// The url parameter is required; everything else has a sensible
// default. Saving to the local provider fetches the page to fill in
// title and description; saving to a remote provider pushes the URL
// to the remote service instead.
package handler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/researchly/research/research"
	"github.com/researchly/research/scrape"
	"go.uber.org/zap"
)

// Scheme is the URL scheme this package handles.
const Scheme = "research"

// Request is a parsed research:// URL.
type Request struct {
	Action   string
	URL      string
	Provider string
	Tags     []research.Tag
	DBPath   string
}

// Parse decodes a research:// URL into a Request. The provider
// defaults to local and tags are comma-separated.
func Parse(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing handler URL: %w", err)
	}
	if u.Scheme != Scheme {
		return nil, fmt.Errorf("unsupported scheme %q (expected %s://)", u.Scheme, Scheme)
	}

	// research://save puts "save" in the host position; a
	// three-slash form (research:///save) puts it in the path.
	action := u.Host
	if action == "" {
		action = strings.Trim(u.Path, "/")
	}
	if action != "save" {
		return nil, fmt.Errorf("unsupported action %q", action)
	}

	q := u.Query()
	req := &Request{
		Action:   action,
		URL:      q.Get("url"),
		Provider: q.Get("provider"),
		DBPath:   q.Get("db_path"),
	}
	if req.URL == "" {
		return nil, fmt.Errorf("missing required url parameter")
	}
	if req.Provider == "" {
		req.Provider = "local"
	}
	if rawTags := q.Get("tags"); rawTags != "" {
		for _, name := range strings.Split(rawTags, ",") {
			if name = strings.TrimSpace(name); name != "" {
				req.Tags = append(req.Tags, research.Tag{Name: name})
			}
		}
	}
	return req, nil
}

// Notifier reports the outcome of a handled request to the user.
// A desktop integration would surface an OS notification; the
// default implementation logs.
type Notifier interface {
	Notify(title, message string)
}

// LogNotifier writes notifications to the program log.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(title, message string) {
	logger := n.Log
	if logger == nil {
		logger = research.Log
	}
	logger.Named("notify").Info(title, zap.String("message", message))
}

// Handler executes parsed requests against a library.
type Handler struct {
	Library  *research.Library
	Secrets  research.Secrets
	Notifier Notifier
}

// New makes a Handler with a logging notifier.
func New(lib *research.Library, secrets research.Secrets) *Handler {
	return &Handler{
		Library:  lib,
		Secrets:  secrets,
		Notifier: LogNotifier{},
	}
}

// Handle dispatches a parsed request. It always notifies, success or
// failure, since the invoking browser shows no output of its own.
func (h *Handler) Handle(ctx context.Context, req *Request) error {
	err := h.save(ctx, req)
	if err != nil {
		h.notify("Save failed", err.Error())
		return err
	}
	h.notify("Saved", req.URL)
	return nil
}

// save pushes to the chosen provider's remote service, if it has one,
// then mirrors the item into the library either way.
func (h *Handler) save(ctx context.Context, req *Request) error {
	prov, err := research.GetProvider(req.Provider)
	if err != nil {
		return err
	}

	var remoteID *int64
	if prov.NewRemote != nil {
		remote, err := prov.NewRemote(h.Secrets)
		if err != nil {
			return err
		}
		remoteID, err = remote.AddItem(ctx, req.URL, research.TagNames(req.Tags))
		if err != nil {
			return fmt.Errorf("saving to %s: %w", prov.Title, err)
		}
	}

	return h.SaveLocal(ctx, req, remoteID)
}

// SaveLocal scrapes the page and inserts the item directly, under a
// remote-assigned ID when the service returned one. Scrape failures
// degrade to a bare URL entry rather than losing the save.
func (h *Handler) SaveLocal(ctx context.Context, req *Request, remoteID *int64) error {
	meta, err := scrape.Fetch(ctx, nil, req.URL)
	if err != nil {
		research.Log.Named("handler").Warn("could not fetch page metadata",
			zap.String("url", req.URL),
			zap.Error(err))
		meta = scrape.Metadata{}
	}

	item := research.Item{
		ID:        remoteID,
		URI:       req.URL,
		Title:     meta.Title,
		Excerpt:   meta.Description,
		TimeAdded: time.Now().Unix(),
	}
	if item.Title == "" {
		item.Title = research.FallbackTitle
	}

	providerID, err := h.Library.ProviderID(req.Provider)
	if err != nil {
		return err
	}
	_, _, _, err = h.Library.UpsertItem(ctx, item, req.Tags, providerID)
	if err != nil {
		return fmt.Errorf("saving to library: %w", err)
	}
	return nil
}

func (h *Handler) notify(title, message string) {
	if h.Notifier != nil {
		h.Notifier.Notify(title, message)
	}
}
