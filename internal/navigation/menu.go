package navigation

import "html/template"

// MenuItem is one sidebar entry derived from a RouteNode.
type MenuItem struct {
	Key      string        `json:"key"`
	Icon     template.HTML `json:"icon,omitempty"`
	IconName string        `json:"icon_name,omitempty"`
	Label    string        `json:"label"`
	Children []MenuItem    `json:"children,omitempty"`
}

// HasChildren reports whether the item renders as a submenu.
func (m MenuItem) HasChildren() bool {
	return len(m.Children) > 0
}

// GenerateMenu maps the route tree to menu items, keeping order and shape.
// Any node whose path is loginPath is left out at every level.
func GenerateMenu(nodes []RouteNode, icons IconSet, loginPath string) []MenuItem {
	items := make([]MenuItem, 0, len(nodes))
	for _, n := range nodes {
		if n.Path == loginPath {
			continue
		}
		item := MenuItem{
			Key:   n.Key,
			Icon:  icons.Lookup(n.Icon),
			Label: n.Name,
		}
		if item.Icon != "" {
			item.IconName = n.Icon
		}
		if len(n.Children) > 0 {
			item.Children = GenerateMenu(n.Children, icons, loginPath)
		}
		items = append(items, item)
	}
	return items
}
