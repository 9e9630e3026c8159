package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(nodes []RouteNode) []string {
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.Key
	}
	return keys
}

func TestRouteTable_FindByKey(t *testing.T) {
	table := settingsTable()

	tests := []struct {
		key      string
		wantName string
		wantOK   bool
	}{
		{"1", "Home", true},
		{"4", "Settings", true},
		{"4-2", "System", true},
		{"login", "Login", true},
		{"does-not-exist", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			node, ok := table.FindByKey(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, node.Name)
		})
	}
}

func TestRouteTable_FindByKeyPrefersTopLevel(t *testing.T) {
	// Keys are unique by construction, so check order through a table
	// that only differs in nesting.
	table := MustRouteTable([]RouteNode{
		{Key: "a", Name: "A", Children: []RouteNode{{Key: "a-1", Name: "A1"}}},
		{Key: "b", Name: "B"},
	})

	node, ok := table.FindByKey("b")
	require.True(t, ok)
	assert.Equal(t, "B", node.Name)

	node, ok = table.FindByKey("a-1")
	require.True(t, ok)
	assert.Equal(t, "A1", node.Name)
}

func TestRouteTable_FindByPathIsTopLevelOnly(t *testing.T) {
	table := settingsTable()

	node, ok := table.FindByPath("/settings")
	require.True(t, ok)
	assert.Equal(t, "4", node.Key)

	_, ok = table.FindByPath("/settings/profile")
	assert.False(t, ok, "children are not searched by path")

	_, ok = table.FindByPath("/settings/")
	assert.False(t, ok, "match is exact")
}

func TestRouteTable_Filters(t *testing.T) {
	table := settingsTable()

	assert.Equal(t, []string{"1", "4"}, keysOf(table.FilterProtected()))
	assert.Equal(t, []string{"login"}, keysOf(table.FilterPublic()))
}

func TestRouteTable_FlattenPreOrder(t *testing.T) {
	decl, err := LoadDeclaration("")
	require.NoError(t, err)
	table, err := decl.Table()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"1", "login", "2", "3", "4", "4-1", "4-2", "4-3", "5", "5-1"},
		keysOf(table.Flatten()),
	)
}

func TestRouteTable_ParentOf(t *testing.T) {
	table := settingsTable()

	parent, ok := table.ParentOf("4-2")
	require.True(t, ok)
	assert.Equal(t, "4", parent.Key)

	_, ok = table.ParentOf("4")
	assert.False(t, ok)
}

func TestNewRouteTable_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []RouteNode
		wantErr error
	}{
		{
			name:    "empty key",
			nodes:   []RouteNode{{Name: "x"}},
			wantErr: ErrEmptyKey,
		},
		{
			name: "duplicate across levels",
			nodes: []RouteNode{
				{Key: "1", Children: []RouteNode{{Key: "2"}}},
				{Key: "2"},
			},
			wantErr: ErrDuplicateKey,
		},
		{
			name: "three levels",
			nodes: []RouteNode{
				{Key: "1", Children: []RouteNode{{Key: "1-1", Children: []RouteNode{{Key: "1-1-1"}}}}},
			},
			wantErr: ErrTooDeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouteTable(tt.nodes)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRouteTable_NodesIsACopy(t *testing.T) {
	table := settingsTable()

	nodes := table.Nodes()
	nodes[0].Name = "changed"
	nodes[2].Children[0].Name = "changed"

	node, _ := table.FindByKey("1")
	assert.Equal(t, "Home", node.Name)
	node, _ = table.FindByKey("4-1")
	assert.Equal(t, "Profile", node.Name)
}

func TestParseDeclaration(t *testing.T) {
	src := []byte(`
routes:
  - key: home
    name: Start
    path: /
  - key: docs
    name: Docs
    path: /docs
    protected: true
    children:
      - key: docs-api
        name: API
        path: /docs/api
pages:
  home_key: home
  sub_pages:
    docs-api: API Reference
  breadcrumbs:
    docs-api: { parent_key: docs, parent_title: Documentation }
`)

	decl, err := ParseDeclaration(src)
	require.NoError(t, err)

	assert.Equal(t, "home", decl.Pages.HomeKey)
	assert.Equal(t, DefaultHomeTitle, decl.Pages.HomeTitle)
	assert.Equal(t, DefaultLoginPath, decl.Pages.LoginPath)
	assert.Equal(t, "API Reference", decl.Pages.SubPageMap["docs-api"])
	assert.Equal(t, BreadcrumbParent{ParentKey: "docs", ParentTitle: "Documentation"}, decl.Pages.BreadcrumbConfig["docs-api"])

	require.Len(t, decl.Routes, 2)
	assert.True(t, decl.Routes[1].Protected)
	assert.Equal(t, "docs-api", decl.Routes[1].Children[0].Key)
}

func TestParseDeclaration_Errors(t *testing.T) {
	_, err := ParseDeclaration([]byte("routes: ["))
	assert.Error(t, err)

	_, err = ParseDeclaration([]byte("pages: {}"))
	assert.ErrorContains(t, err, "no routes")

	_, err = LoadDeclaration("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}
