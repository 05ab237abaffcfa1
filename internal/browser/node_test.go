package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkden-lab/pgbrowser/internal/preferences"
)

func TestNodeBaseDescriptor(t *testing.T) {
	n := newFakeNode("server_group", nil)

	assert.Equal(t, "NODE-server_group", n.Name())
	assert.Equal(t, "server_group", n.NodeType())
	assert.Equal(t, "/browser/server_group", n.NodePath())
	assert.Empty(t, n.Javascripts())
	assert.Empty(t, n.JSSnippets())
	assert.Nil(t, n.ScriptLoad())
}

func TestOwnJavascriptsTemplated(t *testing.T) {
	n := newFakeNode("table", nil)
	n.Templated = true

	scripts := n.OwnJavascripts()
	require.Len(t, scripts, 1)
	assert.Equal(t, "/browser/table/module", scripts[0].Path)
	require.NotNil(t, scripts[0].IsTemplate)
	assert.True(t, *scripts[0].IsTemplate)
}

func TestGenerateBrowserNodeExtrasNeverOverride(t *testing.T) {
	n := newFakeNode("server", nil)

	node := n.GenerateBrowserNode(7, 1, "local", "icon-server", true, "server", map[string]interface{}{
		"id":        "hijacked",
		"module":    "evil",
		"connected": false,
	})

	assert.Equal(t, "server/7", node["id"])
	assert.Equal(t, "pgadmin.node.server", node["module"])
	assert.Equal(t, "local", node["label"])
	assert.Equal(t, "icon-server", node["icon"])
	assert.Equal(t, true, node["inode"])
	assert.Equal(t, "server", node["_type"])
	assert.Equal(t, 7, node["_id"])
	assert.Equal(t, 1, node["_pid"])
	assert.Equal(t, false, node["connected"])
}

func TestCSSSnippetsRecurse(t *testing.T) {
	group := newFakeNode("server_group", nil)
	group.AddSubmodule(newFakeNode("server", nil))

	snippets := group.CSSSnippets()
	require.Len(t, snippets, 2)
	assert.Contains(t, snippets[0], ".icon-server_group {")
	assert.Contains(t, snippets[1], ".icon-server {")
	assert.Contains(t, snippets[1], "/browser/server/static/img/server.png")
}

func TestShowNodeDefaultsAndPreference(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	n := newFakeNode("server_group", nil)
	hidden := newFakeNode("hidden", nil)
	hidden.ShowOnBrowser = false

	ctx := env.userContext()
	assert.True(t, n.ShowNode(ctx), "unbound modules fall back to ShowOnBrowser")
	assert.False(t, n.ShowSystemObjects(ctx))

	n.RegisterPreferences(env.prefs)
	hidden.RegisterPreferences(env.prefs)
	assert.True(t, n.ShowNode(ctx))
	assert.False(t, hidden.ShowNode(ctx))

	pref, err := env.prefs.Lookup("browser", "node", "show_node_server_group")
	require.NoError(t, err)
	require.NoError(t, pref.Set(ctx, false))
	assert.False(t, n.ShowNode(ctx))
	assert.True(t, n.ShowNode(context.Background()), "anonymous requests see the default")

	system, err := env.prefs.Lookup("browser", "display", "show_system_objects")
	require.NoError(t, err)
	require.NoError(t, system.Set(ctx, true))
	assert.True(t, n.ShowSystemObjects(ctx))
}

func TestShowNodePreferenceCategory(t *testing.T) {
	reg := preferences.NewRegistry(preferences.NewMemoryStore())
	n := newFakeNode("server", nil)
	n.RegisterPreferences(reg)

	var label string
	for _, c := range reg.Module("browser").Categories {
		if c.Name == "node" {
			label = c.Label
		}
	}
	assert.Equal(t, "Nodes", label)
}
