package navigation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultNavigator(t *testing.T, obs Observer) *Navigator {
	t.Helper()
	decl, err := LoadDeclaration("")
	require.NoError(t, err)

	components := ComponentMap{}
	for _, k := range []string{"2", "3", "4", "4-1", "4-2", "4-3", "5", "5-1"} {
		components[k] = staticLoader("page "+k, nil)
	}

	nav, err := New(decl, DefaultIcons(), components, discardLogger(), Options{
		Observer: obs,
		Strict:   true,
		LoadWait: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { nav.Close() })
	return nav
}

func TestNavigator_DefaultTree(t *testing.T) {
	nav := newDefaultNavigator(t, nil)

	menu := nav.Menu()
	require.Len(t, menu, 5, "login has no menu entry")
	assert.Equal(t, "Settings", menu[3].Label)
	assert.Len(t, menu[3].Children, 3)

	state := nav.NewState()
	assert.Equal(t, "1", state.CurrentPageKey)

	view := nav.View(state)
	assert.Equal(t, []BreadcrumbEntry{{Key: "1", Title: "Home"}}, view.Breadcrumb)
	assert.Equal(t, "Home", view.Title)
}

func TestNavigator_SelectAndResolve(t *testing.T) {
	obs := &recordingObserver{}
	nav := newDefaultNavigator(t, obs)
	ctx := context.Background()
	state := nav.NewState()

	nav.Select(state, "4-1")
	assert.Equal(t, []BreadcrumbEntry{
		{Key: "4", Title: "System Settings"},
		{Key: "4-1", Title: "Profile"},
	}, nav.Breadcrumb(state))

	c := nav.Content(ctx, state)
	require.Equal(t, ContentReady, c.Kind)
	assert.Equal(t, "page 4-1", render(t, c.Component))
	assert.Equal(t, "Profile", nav.Title(state))

	nav.Select(state, "does-not-exist")
	assert.Empty(t, nav.Breadcrumb(state))
	assert.Equal(t, ContentNotFound, nav.Content(ctx, state).Kind)
	assert.Equal(t, "", nav.Title(state))

	assert.Equal(t, []string{"4-1", "does-not-exist"}, obs.selected)
}

func TestNavigator_BreadcrumbClickKeepsOpenKeys(t *testing.T) {
	nav := newDefaultNavigator(t, nil)
	state := nav.NewState()

	nav.Select(state, "5-1")
	trail := nav.Breadcrumb(state)
	require.Equal(t, []BreadcrumbEntry{
		{Key: "5", Title: "Orders"},
		{Key: "5-1", Title: "Order Management Test"},
	}, trail)

	trail[0].OnSelect(state)
	assert.Equal(t, "5", state.CurrentPageKey)
	assert.Empty(t, state.OpenKeys)
}

func TestNavigator_ViewCopiesOpenKeys(t *testing.T) {
	nav := newDefaultNavigator(t, nil)
	state := nav.NewState()
	state.SetOpenKeys([]string{"4"})

	view := nav.View(state)
	view.OpenKeys[0] = "changed"
	assert.Equal(t, []string{"4"}, state.OpenKeys)
}

func TestNavigator_Preload(t *testing.T) {
	nav := newDefaultNavigator(t, nil)
	require.NoError(t, nav.Preload(context.Background()))
	for _, k := range []string{"2", "4-1", "5-1"} {
		c := nav.Content(context.Background(), &State{CurrentPageKey: k})
		assert.Equal(t, ContentReady, c.Kind, k)
	}
}
