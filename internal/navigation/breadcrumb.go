package navigation

// BreadcrumbEntry is one clickable segment of the breadcrumb trail.
type BreadcrumbEntry struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// OnSelect activates the entry's page.
func (e BreadcrumbEntry) OnSelect(s *State) {
	s.Select(e.Key)
}

// BreadcrumbResolver derives the trail for the current page from the route
// table and the auxiliary page maps.
type BreadcrumbResolver struct {
	table *RouteTable
	pages PageConfig
}

func NewBreadcrumbResolver(table *RouteTable, pages PageConfig) *BreadcrumbResolver {
	pages.applyDefaults()
	return &BreadcrumbResolver{table: table, pages: pages}
}

// Resolve returns the trail for key. Rules are tried in order and the first
// match wins:
//
//  1. the home key yields the single home crumb;
//  2. a configured parent yields the parent crumb, followed by the page's own
//     crumb only when a subtitle is mapped for it;
//  3. a top-level route yields its own crumb;
//  4. anything else yields an empty trail.
//
// The result is never nil.
func (r *BreadcrumbResolver) Resolve(key string) []BreadcrumbEntry {
	if key == r.pages.HomeKey {
		return []BreadcrumbEntry{{Key: r.pages.HomeKey, Title: r.pages.HomeTitle}}
	}

	if cfg, ok := r.pages.BreadcrumbConfig[key]; ok && cfg.ParentKey != "" && cfg.ParentTitle != "" {
		trail := []BreadcrumbEntry{{Key: cfg.ParentKey, Title: cfg.ParentTitle}}
		if title, ok := r.pages.SubPageMap[key]; ok {
			trail = append(trail, BreadcrumbEntry{Key: key, Title: title})
		}
		return trail
	}

	if node, ok := r.table.FindTopLevel(key); ok {
		return []BreadcrumbEntry{{Key: node.Key, Title: node.Name}}
	}

	return []BreadcrumbEntry{}
}

// ForState resolves the trail for the state's current page.
func (r *BreadcrumbResolver) ForState(s *State) []BreadcrumbEntry {
	return r.Resolve(s.CurrentPageKey)
}
