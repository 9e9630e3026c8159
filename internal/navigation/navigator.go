package navigation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"
)

// Options configures a Navigator.
type Options struct {
	// Observer receives selection and load events. Optional.
	Observer Observer

	// Strict makes New fail when Validate reports any issue. Otherwise the
	// issues are logged and the navigator degrades gracefully at runtime.
	Strict bool

	// LoadWait bounds how long Content waits for a deferred load before
	// answering with the loading placeholder.
	LoadWait time.Duration
}

// Navigator ties the route table to the menu, breadcrumb and content
// resolvers for one route declaration.
type Navigator struct {
	table       *RouteTable
	pages       PageConfig
	icons       IconSet
	menu        []MenuItem
	breadcrumbs *BreadcrumbResolver
	content     *ContentResolver
	observer    Observer
	loadWait    time.Duration
	logger      *slog.Logger
}

// View is the navigation chrome for one render of the layout.
type View struct {
	Menu           []MenuItem        `json:"menu"`
	Breadcrumb     []BreadcrumbEntry `json:"breadcrumb"`
	CurrentPageKey string            `json:"current_page_key"`
	OpenKeys       []string          `json:"open_keys"`
	Title          string            `json:"title"`
}

func New(decl *Declaration, icons IconSet, components ComponentMap, logger *slog.Logger, opts Options) (*Navigator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	table, err := decl.Table()
	if err != nil {
		return nil, err
	}
	pages := decl.Pages
	pages.applyDefaults()

	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	if issues := Validate(table, icons, keys, pages); len(issues) > 0 {
		if opts.Strict {
			return nil, &ValidationError{Issues: issues}
		}
		for _, is := range issues {
			logger.Warn("navigation config issue", "kind", is.Kind, "key", is.Key, "detail", is.Detail)
		}
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	if opts.LoadWait <= 0 {
		opts.LoadWait = 2 * time.Second
	}

	n := &Navigator{
		table:       table,
		pages:       pages,
		icons:       icons,
		menu:        GenerateMenu(table.Nodes(), icons, pages.LoginPath),
		breadcrumbs: NewBreadcrumbResolver(table, pages),
		content:     NewContentResolver(pages.HomeKey, components, logger, WithObserver(observer)),
		observer:    observer,
		loadWait:    opts.LoadWait,
		logger:      logger,
	}

	logger.Info("navigation initialized",
		"routes", len(table.Flatten()),
		"components", len(components),
		"home_key", pages.HomeKey,
	)
	return n, nil
}

func (n *Navigator) Table() *RouteTable { return n.table }
func (n *Navigator) Pages() PageConfig { return n.pages }
func (n *Navigator) HomeKey() string { return n.pages.HomeKey }
func (n *Navigator) Menu() []MenuItem { return n.menu }
func (n *Navigator) Icons() IconSet { return n.icons }
func (n *Navigator) NewState() *State { return NewState(n.pages.HomeKey) }

// Select makes key the active page of s. Unknown keys are accepted and
// resolve to the not-found content.
func (n *Navigator) Select(s *State, key string) {
	s.Select(key)
	n.observer.PageSelected(key)
	n.logger.Debug("page selected", "key", key)
}

// Breadcrumb returns the trail for the state's current page.
func (n *Navigator) Breadcrumb(s *State) []BreadcrumbEntry {
	return n.breadcrumbs.ForState(s)
}

// Content resolves the content area for the state's current page.
func (n *Navigator) Content(ctx context.Context, s *State) Content {
	return n.content.Resolve(ctx, s.CurrentPageKey, n.loadWait)
}

// Title is the display name of the current page, or empty for unknown keys.
func (n *Navigator) Title(s *State) string {
	if s.CurrentPageKey == n.pages.HomeKey {
		return n.pages.HomeTitle
	}
	if node, ok := n.table.FindByKey(s.CurrentPageKey); ok {
		return node.Name
	}
	return ""
}

// View assembles the menu, breadcrumb and selection for rendering.
func (n *Navigator) View(s *State) View {
	return View{
		Menu:           n.menu,
		Breadcrumb:     n.Breadcrumb(s),
		CurrentPageKey: s.CurrentPageKey,
		OpenKeys:       append([]string{}, s.OpenKeys...),
		Title:          n.Title(s),
	}
}

// Preload loads every page component that is not memoised yet and returns
// the failures joined. Keys that fail stay unloaded and are retried on their
// next selection.
func (n *Navigator) Preload(ctx context.Context) error {
	keys := n.content.Keys()
	slices.Sort(keys)
	var errs []error
	for _, key := range keys {
		if err := n.content.Preload(ctx, key); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops in-flight component loads.
func (n *Navigator) Close() error {
	return n.content.Close()
}
