package navigation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shape strips a menu down to key/label/children for structural comparison.
type shape struct {
	Key      string
	Label    string
	Children []shape
}

func menuShape(items []MenuItem) []shape {
	out := make([]shape, 0, len(items))
	for _, it := range items {
		out = append(out, shape{Key: it.Key, Label: it.Label, Children: menuShapeOrNil(it.Children)})
	}
	return out
}

func menuShapeOrNil(items []MenuItem) []shape {
	if len(items) == 0 {
		return nil
	}
	return menuShape(items)
}

func routeShape(nodes []RouteNode, loginPath string) []shape {
	out := make([]shape, 0, len(nodes))
	for _, n := range nodes {
		if n.Path == loginPath {
			continue
		}
		var children []shape
		if len(n.Children) > 0 {
			children = routeShape(n.Children, loginPath)
		}
		out = append(out, shape{Key: n.Key, Label: n.Name, Children: children})
	}
	return out
}

func TestGenerateMenu_IsomorphicToRouteTree(t *testing.T) {
	tables := map[string][]RouteNode{
		"settings": settingsTable().Nodes(),
		"flat": {
			{Key: "a", Name: "A", Path: "/a"},
			{Key: "b", Name: "B", Path: "/b"},
		},
		"login only": {
			{Key: "login", Name: "Login", Path: "/login"},
		},
	}

	decl, err := LoadDeclaration("")
	require.NoError(t, err)
	tables["default"] = decl.Routes

	for name, nodes := range tables {
		t.Run(name, func(t *testing.T) {
			menu := GenerateMenu(nodes, DefaultIcons(), "/login")
			if diff := cmp.Diff(routeShape(nodes, "/login"), menuShape(menu)); diff != "" {
				t.Errorf("menu shape mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGenerateMenu_ExcludesLogin(t *testing.T) {
	menu := GenerateMenu(settingsTable().Nodes(), DefaultIcons(), "/login")

	for _, it := range menu {
		assert.NotEqual(t, "login", it.Key)
	}
	assert.Len(t, menu, 2)
}

func TestGenerateMenu_Icons(t *testing.T) {
	nodes := []RouteNode{
		{Key: "a", Name: "A", Path: "/a", Icon: "HomeOutlined"},
		{Key: "b", Name: "B", Path: "/b", Icon: "NoSuchIcon"},
		{Key: "c", Name: "C", Path: "/c"},
	}

	menu := GenerateMenu(nodes, DefaultIcons(), "/login")
	require.Len(t, menu, 3)

	assert.NotEmpty(t, menu[0].Icon)
	assert.Equal(t, "HomeOutlined", menu[0].IconName)
	assert.Empty(t, menu[1].Icon, "unknown icon yields no icon")
	assert.Empty(t, menu[1].IconName)
	assert.Empty(t, menu[2].Icon)
}

func TestGenerateMenu_Deterministic(t *testing.T) {
	nodes := settingsTable().Nodes()
	first := GenerateMenu(nodes, DefaultIcons(), "/login")
	second := GenerateMenu(nodes, DefaultIcons(), "/login")
	assert.Equal(t, first, second)
}

func TestGenerateMenu_NilIcons(t *testing.T) {
	menu := GenerateMenu(settingsTable().Nodes(), nil, "/login")
	for _, it := range menu {
		assert.Empty(t, it.Icon)
	}
}
