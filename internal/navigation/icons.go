package navigation

import "html/template"

// IconSet maps a symbolic icon name to inline SVG markup.
type IconSet map[string]template.HTML

// Lookup returns the icon for name. Unknown or empty names yield no icon.
func (s IconSet) Lookup(name string) template.HTML {
	if name == "" || s == nil {
		return ""
	}
	return s[name]
}

// Has reports whether name resolves to an icon.
func (s IconSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

const (
	svgOpen  = `<svg class="icon" viewBox="0 0 24 24" width="16" height="16" fill="none" stroke="currentColor" stroke-width="2" stroke-linecap="round" stroke-linejoin="round">`
	svgClose = `</svg>`
)

func svg(body string) template.HTML {
	return template.HTML(svgOpen + body + svgClose)
}

// DefaultIcons is the icon table used by the dashboard layout.
func DefaultIcons() IconSet {
	home := svg(`<path d="M3 11l9-8 9 8"/><path d="M5 10v10h14V10"/>`)
	users := svg(`<circle cx="9" cy="8" r="3"/><path d="M3 20c0-3 3-5 6-5s6 2 6 5"/><path d="M17 11v6M14 14h6"/>`)
	cart := svg(`<circle cx="9" cy="20" r="1"/><circle cx="18" cy="20" r="1"/><path d="M2 3h3l3 12h11l2-8H6"/>`)
	setting := svg(`<circle cx="12" cy="12" r="3"/><path d="M12 2v3M12 19v3M2 12h3M19 12h3M5 5l2 2M17 17l2 2M5 19l2-2M17 7l2-2"/>`)
	list := svg(`<path d="M9 6h12M9 12h12M9 18h12"/><path d="M4 6h1M4 12h1M4 18h1"/>`)
	user := svg(`<circle cx="12" cy="8" r="4"/><path d="M4 21c0-4 4-6 8-6s8 2 8 6"/>`)

	return IconSet{
		"HomeOutlined":            home,
		"UsergroupAddOutlined":    users,
		"ShoppingCartOutlined":    cart,
		"SettingOutlined":         setting,
		"OrderedListOutlined":     list,
		"UserOutlined":            user,
		"LogoutOutlined":          svg(`<path d="M9 21H5V3h4"/><path d="M16 17l5-5-5-5M21 12H9"/>`),
		"MenuFoldOutlined":        svg(`<path d="M3 6h18M9 12h12M3 18h18"/><path d="M6 10l-3 2 3 2"/>`),
		"MenuUnfoldOutlined":      svg(`<path d="M3 6h18M3 12h12M3 18h18"/><path d="M18 10l3 2-3 2"/>`),
		"TestOutlined":            setting,
		"OrderedListTestOutlined": list,
	}
}
