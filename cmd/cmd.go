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

// Package cmd facilitates the command line interface (CLI)
// and implements the main().
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/researchly/research/config"
	"github.com/researchly/research/handler"
	"github.com/researchly/research/providers/local"
	"github.com/researchly/research/research"
	"github.com/researchly/research/scrape"
	"github.com/researchly/research/site"
	"go.uber.org/zap"
)

func Main() {
	cfg, err := config.Load()
	if err != nil {
		research.Log.Fatal("failed loading config", zap.Error(err))
	}

	loc, err := cfg.Location()
	if err != nil {
		research.Log.Fatal("failed resolving timezone", zap.Error(err))
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	env := &cmdEnv{cfg: cfg, loc: loc}
	ctx := context.Background()

	subCommand := os.Args[1]
	args := os.Args[2:]

	subCommands := map[string]func(context.Context, []string) error{
		"init":     env.runInit,
		"fetch":    env.runFetch,
		"list":     env.runList,
		"pocket":   env.runPocket,
		"local":    env.runLocal,
		"generate": env.runGenerate,
		"export":   env.runExport,
		"handle":   env.runHandle,
		"help": func(context.Context, []string) error {
			fmt.Print(usage)
			return nil
		},
	}

	subCommandFunc, ok := subCommands[subCommand]
	if !ok {
		research.Log.Fatal("unknown subcommand; run `help` for usage",
			zap.String("subcommand", subCommand))
	}

	if err := subCommandFunc(ctx, args); err != nil {
		research.Log.Fatal("subcommand failed",
			zap.String("subcommand", subCommand),
			zap.Error(err))
	}
}

const usage = `Usage: research <command> [flags]

Commands:
  init                          create the library database
  fetch [-limit N]              fetch from all remote providers
  list [-tags a,b] [-favorite] [-provider name] [-limit N]
                                list stored items
  pocket auth                   authorize with Pocket and store credentials
  pocket fetch [-limit N]       fetch saved Pocket items
  pocket add -url U [-tags a,b] save a URL to Pocket (and locally)
  pocket favorite -id N | -url U [-undo]
                                favorite an item on Pocket and locally
  local add -url U [-title T] [-excerpt E] [-tags a,b]
                                save a URL locally
  local list [...]              list locally saved items
  local favorite -id N | -url U [-undo]
                                favorite an item locally
  local annotate -id N -notes S attach notes to an item
  generate -out DIR [-assets DIR]
                                render the static site
  export -raindrop [-out FILE]  export items as Raindrop-compatible CSV
  handle URL                    handle a research:// URL
  help                          show this help

Configuration comes from research.yaml and RESEARCH_* environment
variables (RESEARCH_DB, RESEARCH_TIMEZONE, RESEARCH_POCKET_CONSUMER_KEY,
RESEARCH_POCKET_ACCESS_TOKEN).
`

// cmdEnv carries what every subcommand needs.
type cmdEnv struct {
	cfg *config.Config
	loc *time.Location
}

func (e *cmdEnv) openLibrary(ctx context.Context) (*research.Library, error) {
	return research.Open(ctx, e.cfg.DB)
}

// secrets loads stored credentials and fills gaps from the config, so
// first-time runs can pass keys by flag or environment before auth has
// written anything.
func (e *cmdEnv) secrets(ctx context.Context, lib *research.Library) (research.Secrets, error) {
	s, err := lib.Secrets(ctx)
	if err != nil {
		return research.Secrets{}, err
	}
	if s.PocketConsumerKey == "" {
		s.PocketConsumerKey = e.cfg.Pocket.ConsumerKey
	}
	if s.PocketAccessToken == "" {
		s.PocketAccessToken = e.cfg.Pocket.AccessToken
	}
	return s, nil
}

func (e *cmdEnv) runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	lib, err := research.CreateAt(ctx, e.cfg.DB)
	if err != nil {
		return err
	}
	defer lib.Close()

	fmt.Printf("Library ready at %s\n", lib.Path())
	return nil
}

func (e *cmdEnv) runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	limit := fs.Int("limit", 0, "fetch at most this many items per provider (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lib, err := e.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	secrets, err := e.secrets(ctx, lib)
	if err != nil {
		return err
	}

	for _, prov := range research.AllProviders() {
		if prov.NewRemote == nil {
			continue
		}
		if err := fetchAndSync(ctx, lib, prov, secrets, *limit); err != nil {
			return err
		}
	}
	return nil
}

func fetchAndSync(ctx context.Context, lib *research.Library, prov research.Provider, secrets research.Secrets, limit int) error {
	remote, err := prov.NewRemote(secrets)
	if err != nil {
		return err
	}

	items, err := remote.FetchItems(ctx, limit)
	if err != nil {
		return fmt.Errorf("fetching from %s: %w", prov.Title, err)
	}

	stats, err := lib.SyncProvider(ctx, prov.Name, items)
	if err != nil {
		return fmt.Errorf("syncing %s items: %w", prov.Title, err)
	}

	fmt.Printf("%s: %d fetched, %d new, %d already stored\n",
		prov.Title, stats.Total, stats.Inserted, stats.Existing)
	return nil
}

func (e *cmdEnv) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	opt, tags := listFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	opt.Tags = splitTags(*tags)
	return e.listItems(ctx, *opt)
}

// listFlags registers the shared listing flags on fs. The tags flag is
// returned raw; split it after parsing.
func listFlags(fs *flag.FlagSet) (*research.ListOptions, *string) {
	opt := new(research.ListOptions)
	tags := fs.String("tags", "", "only items with at least one of these comma-separated tags")
	fs.BoolVar(&opt.FavoriteOnly, "favorite", false, "only favorites")
	fs.StringVar(&opt.Provider, "provider", "", "only items from this provider")
	fs.IntVar(&opt.Limit, "limit", 0, "show at most this many items (0 = all)")
	return opt, tags
}

func (e *cmdEnv) listItems(ctx context.Context, opt research.ListOptions) error {
	lib, err := e.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	items, err := lib.Items(ctx, opt)
	if err != nil {
		return err
	}

	for _, item := range items {
		tags, err := lib.ItemTags(ctx, *item.ID)
		if err != nil {
			return err
		}
		star := " "
		if item.Favorite {
			star = "*"
		}
		line := fmt.Sprintf("%6d %s %s  %s", *item.ID, star, item.DisplayTime(e.loc), item.Title)
		if len(tags) > 0 {
			line += "  [" + strings.Join(research.TagNames(tags), ", ") + "]"
		}
		fmt.Println(line)
		fmt.Printf("         %s\n", item.URI)
	}
	fmt.Printf("%d items\n", len(items))
	return nil
}

func (e *cmdEnv) runPocket(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("pocket requires a subcommand: auth, fetch, add, or favorite")
	}
	sub, rest := args[0], args[1:]

	prov, err := research.GetProvider("pocket")
	if err != nil {
		return err
	}

	lib, err := e.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	secrets, err := e.secrets(ctx, lib)
	if err != nil {
		return err
	}

	switch sub {
	case "auth":
		remote, err := prov.NewRemote(secrets)
		if err != nil {
			return err
		}
		authorized, err := remote.Authenticate(ctx)
		if err != nil {
			return err
		}
		if err := lib.SetSecrets(ctx, authorized); err != nil {
			return fmt.Errorf("storing credentials: %w", err)
		}
		fmt.Println("Pocket credentials stored.")
		return nil

	case "fetch":
		fs := flag.NewFlagSet("pocket fetch", flag.ExitOnError)
		limit := fs.Int("limit", 0, "fetch at most this many items (0 = all)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return fetchAndSync(ctx, lib, prov, secrets, *limit)

	case "add":
		fs := flag.NewFlagSet("pocket add", flag.ExitOnError)
		rawURL := fs.String("url", "", "the URL to save (required)")
		tags := fs.String("tags", "", "comma-separated tags")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *rawURL == "" {
			return fmt.Errorf("missing required -url flag")
		}

		remote, err := prov.NewRemote(secrets)
		if err != nil {
			return err
		}
		tagList := splitTags(*tags)
		remoteID, err := remote.AddItem(ctx, *rawURL, tagList)
		if err != nil {
			return err
		}

		if err := mirrorLocally(ctx, lib, prov.Name, *rawURL, remoteID, tagList); err != nil {
			return err
		}
		fmt.Printf("Saved %s to Pocket.\n", *rawURL)
		return nil

	case "favorite":
		fs := flag.NewFlagSet("pocket favorite", flag.ExitOnError)
		id := fs.Int64("id", 0, "the item ID")
		rawURL := fs.String("url", "", "the item URL, as an alternative to -id")
		undo := fs.Bool("undo", false, "remove the favorite mark instead")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		itemID, err := resolveItemID(ctx, lib, *id, *rawURL)
		if err != nil {
			return err
		}

		remote, err := prov.NewRemote(secrets)
		if err != nil {
			return err
		}
		if err := remote.MarkFavorite(ctx, itemID, !*undo); err != nil {
			return err
		}
		return lib.MarkFavorite(ctx, itemID, !*undo)

	default:
		return fmt.Errorf("unknown pocket subcommand: %s", sub)
	}
}

func (e *cmdEnv) runLocal(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("local requires a subcommand: add, list, favorite, or annotate")
	}
	sub, rest := args[0], args[1:]

	if sub == "list" {
		fs := flag.NewFlagSet("local list", flag.ExitOnError)
		opt, tags := listFlags(fs)
		if err := fs.Parse(rest); err != nil {
			return err
		}
		opt.Tags = splitTags(*tags)
		opt.Provider = "local"
		return e.listItems(ctx, *opt)
	}

	lib, err := e.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	switch sub {
	case "add":
		fs := flag.NewFlagSet("local add", flag.ExitOnError)
		rawURL := fs.String("url", "", "the URL to save (required)")
		title := fs.String("title", "", "title override (otherwise scraped from the page)")
		excerpt := fs.String("excerpt", "", "excerpt override (otherwise scraped from the page)")
		tags := fs.String("tags", "", "comma-separated tags")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *rawURL == "" {
			return fmt.Errorf("missing required -url flag")
		}

		entry := local.Item{
			URI:       *rawURL,
			Title:     *title,
			Excerpt:   *excerpt,
			TimeAdded: time.Now().Unix(),
			Tags:      research.MakeTags(splitTags(*tags)),
		}
		if entry.Title == "" || entry.Excerpt == "" {
			meta, err := scrape.Fetch(ctx, nil, *rawURL)
			if err != nil {
				research.Log.Warn("could not fetch page metadata", zap.Error(err))
			}
			if entry.Title == "" {
				entry.Title = meta.Title
			}
			if entry.Excerpt == "" {
				entry.Excerpt = meta.Description
			}
		}
		if _, err := lib.SyncProvider(ctx, local.ProviderName, []research.Insertable{entry}); err != nil {
			return err
		}
		fmt.Printf("Saved %s.\n", *rawURL)
		return nil

	case "favorite":
		fs := flag.NewFlagSet("local favorite", flag.ExitOnError)
		id := fs.Int64("id", 0, "the item ID")
		rawURL := fs.String("url", "", "the item URL, as an alternative to -id")
		undo := fs.Bool("undo", false, "remove the favorite mark instead")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		itemID, err := resolveItemID(ctx, lib, *id, *rawURL)
		if err != nil {
			return err
		}
		return lib.MarkFavorite(ctx, itemID, !*undo)

	case "annotate":
		fs := flag.NewFlagSet("local annotate", flag.ExitOnError)
		id := fs.Int64("id", 0, "the item ID (required)")
		notes := fs.String("notes", "", "the notes text (required)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *id == 0 {
			return fmt.Errorf("missing required -id flag")
		}
		if *notes == "" {
			return fmt.Errorf("missing required -notes flag")
		}
		return lib.SetNotes(ctx, *id, *notes)

	default:
		return fmt.Errorf("unknown local subcommand: %s", sub)
	}
}

func (e *cmdEnv) runGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	out := fs.String("out", "", "output directory (required)")
	assets := fs.String("assets", "", "directory with main.css and search.js to copy")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("missing required -out flag")
	}

	lib, err := e.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	tags, err := lib.AllTags(ctx)
	if err != nil {
		return err
	}
	items, err := lib.ItemsWithTags(ctx)
	if err != nil {
		return err
	}

	s, err := site.Build(tags, items, e.loc)
	if err != nil {
		return err
	}
	if err := s.Write(*out, *assets); err != nil {
		return err
	}

	fmt.Printf("Generated site with %d items in %s\n", len(items), *out)
	return nil
}

func (e *cmdEnv) runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	raindrop := fs.Bool("raindrop", false, "export Raindrop-compatible CSV")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*raindrop {
		return fmt.Errorf("no export format selected; pass -raindrop")
	}

	lib, err := e.openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.Close()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	n, err := lib.ExportRaindropCSV(ctx, w)
	if err != nil {
		return err
	}
	if *out != "" {
		fmt.Printf("Exported %d items to %s\n", n, *out)
	}
	return nil
}

func (e *cmdEnv) runHandle(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("handle requires exactly one research:// URL argument")
	}

	req, err := handler.Parse(args[0])
	if err != nil {
		return err
	}

	dbPath := e.cfg.DB
	if req.DBPath != "" {
		dbPath = req.DBPath
	}
	lib, err := research.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer lib.Close()

	secrets, err := e.secrets(ctx, lib)
	if err != nil {
		return err
	}

	return handler.New(lib, secrets).Handle(ctx, req)
}

// mirrorLocally stores a remotely pushed URL into the library so
// listings and the generated site include it without waiting for the
// next fetch. The page is scraped for a title and excerpt; the
// remote-assigned ID wins when the service returned one.
func mirrorLocally(ctx context.Context, lib *research.Library, providerName, rawURL string, remoteID *int64, tags []string) error {
	h := handler.New(lib, research.Secrets{})
	req := &handler.Request{
		Action:   "save",
		URL:      rawURL,
		Provider: providerName,
		Tags:     research.MakeTags(tags),
	}
	return h.SaveLocal(ctx, req, remoteID)
}

// resolveItemID accepts an explicit ID or falls back to looking the
// item up by URL.
func resolveItemID(ctx context.Context, lib *research.Library, id int64, rawURL string) (int64, error) {
	if id != 0 {
		return id, nil
	}
	if rawURL == "" {
		return 0, fmt.Errorf("pass -id or -url to identify the item")
	}
	return lib.ItemIDByURI(ctx, rawURL)
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
