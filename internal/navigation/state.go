package navigation

import "slices"

// State is the per-session navigation selection: which page is active and
// which submenus are expanded. It is passed explicitly to the resolvers.
type State struct {
	CurrentPageKey string   `json:"current_page_key"`
	OpenKeys       []string `json:"open_keys"`
}

// NewState returns a fresh selection on the home page with nothing expanded.
func NewState(homeKey string) *State {
	return &State{CurrentPageKey: homeKey, OpenKeys: []string{}}
}

// Select makes key the active page. Expanded submenus are left alone.
func (s *State) Select(key string) {
	s.CurrentPageKey = key
}

// SetOpenKeys replaces the expanded submenu set, dropping blanks and duplicates.
func (s *State) SetOpenKeys(keys []string) {
	open := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || slices.Contains(open, k) {
			continue
		}
		open = append(open, k)
	}
	s.OpenKeys = open
}

// ToggleOpen expands key if collapsed, or collapses it if expanded.
func (s *State) ToggleOpen(key string) {
	if key == "" {
		return
	}
	if i := slices.Index(s.OpenKeys, key); i >= 0 {
		s.OpenKeys = slices.Delete(s.OpenKeys, i, i+1)
		return
	}
	s.OpenKeys = append(s.OpenKeys, key)
}

// IsOpen reports whether the submenu for key is expanded.
func (s *State) IsOpen(key string) bool {
	return slices.Contains(s.OpenKeys, key)
}

// IsSelected reports whether key is the active page.
func (s *State) IsSelected(key string) bool {
	return s.CurrentPageKey == key
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	return &State{CurrentPageKey: s.CurrentPageKey, OpenKeys: slices.Clone(s.OpenKeys)}
}
