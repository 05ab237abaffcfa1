package browser

import (
	"context"
	"fmt"

	"github.com/gorilla/mux"

	"github.com/darkden-lab/pgbrowser/internal/plugin"
	"github.com/darkden-lab/pgbrowser/internal/preferences"
)

// Node is one entry of the browser tree as sent to the client.
type Node map[string]interface{}

// NodeModule is implemented by every module that contributes a node type to
// the browser tree. Concrete modules embed NodeBase and provide GetNodes and
// RegisterRoutes.
type NodeModule interface {
	plugin.Module
	NodeType() string
	ScriptLoad() *string
	GetNodes(ctx context.Context) ([]Node, error)
	OwnJavascripts() []plugin.Asset
	CSSSnippets() []string
	JSSnippets() []string
	ShowNode(ctx context.Context) bool
}

// NodeBase implements the behaviour shared by node modules.
type NodeBase struct {
	Type  string
	Title string
	// Load is the node type whose expansion loads this module's script.
	Load *string
	// Templated modules serve their script from /browser/<type>/module.
	Templated     bool
	ShowOnBrowser bool

	children          []NodeModule
	showNode          *preferences.Preference
	showSystemObjects *preferences.Preference
}

func NewNodeBase(nodeType, label string, scriptLoad *string) NodeBase {
	return NodeBase{
		Type:          nodeType,
		Title:         label,
		Load:          scriptLoad,
		ShowOnBrowser: true,
	}
}

func (n *NodeBase) Name() string        { return "NODE-" + n.Type }
func (n *NodeBase) Label() string       { return n.Title }
func (n *NodeBase) NodeType() string    { return n.Type }
func (n *NodeBase) ScriptLoad() *string { return n.Load }

// NodePath is the URL prefix of the node's routes.
func (n *NodeBase) NodePath() string { return "/browser/" + n.Type }

// AddSubmodule attaches a child node module.
func (n *NodeBase) AddSubmodule(m NodeModule) {
	n.children = append(n.children, m)
}

func (n *NodeBase) Submodules() []plugin.Module {
	out := make([]plugin.Module, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

func (n *NodeBase) Stylesheets() []string         { return nil }
func (n *NodeBase) ExposedURLEndpoints() []string { return nil }

// Javascripts is empty: node scripts reach the page through the
// OwnJavascripts of the browser module.
func (n *NodeBase) Javascripts() []plugin.Asset { return []plugin.Asset{} }

// OwnJavascripts returns the node's script followed by the scripts of its
// submodules.
func (n *NodeBase) OwnJavascripts() []plugin.Asset {
	asset := plugin.Asset{
		Name:       "pgadmin.node." + n.Type,
		Path:       fmt.Sprintf("%s/static/js/%s", n.NodePath(), n.Type),
		When:       n.Load,
		IsTemplate: plugin.Bool(false),
	}
	if n.Templated {
		asset.Path = n.NodePath() + "/module"
		asset.IsTemplate = plugin.Bool(true)
	}

	scripts := []plugin.Asset{asset}
	for _, c := range n.children {
		scripts = append(scripts, c.OwnJavascripts()...)
	}
	return scripts
}

// CSSSnippets renders the node stylesheet for this type and its submodules.
func (n *NodeBase) CSSSnippets() []string {
	snippet, err := render(nodeCSS, struct{ NodeType string }{n.Type})
	snippets := make([]string, 0, 1+len(n.children))
	if err == nil {
		snippets = append(snippets, string(snippet))
	}
	for _, c := range n.children {
		snippets = append(snippets, c.CSSSnippets()...)
	}
	return snippets
}

func (n *NodeBase) JSSnippets() []string { return []string{} }

// GenerateBrowserNode builds a tree node. Keys in extra never replace the
// standard attributes.
func (n *NodeBase) GenerateBrowserNode(id, parentID interface{}, label, icon string, inode bool, nodeType string, extra map[string]interface{}) Node {
	node := Node{
		"id":     fmt.Sprintf("%s/%v", nodeType, id),
		"label":  label,
		"icon":   icon,
		"inode":  inode,
		"_type":  nodeType,
		"_id":    id,
		"_pid":   parentID,
		"module": "pgadmin.node." + nodeType,
	}
	for k, v := range extra {
		if _, ok := node[k]; !ok {
			node[k] = v
		}
	}
	return node
}

// ShowNode reports whether the node type is shown in the tree for the
// current user.
func (n *NodeBase) ShowNode(ctx context.Context) bool {
	if n.showNode != nil {
		return n.showNode.Bool(ctx)
	}
	return n.ShowOnBrowser
}

func (n *NodeBase) ShowSystemObjects(ctx context.Context) bool {
	if n.showSystemObjects != nil {
		return n.showSystemObjects.Bool(ctx)
	}
	return false
}

// RegisterPreferences binds the browser display preferences and registers
// the node's show_node preference, then does the same for submodules.
func (n *NodeBase) RegisterPreferences(reg *preferences.Registry) {
	browser := reg.Module(ModuleName)
	n.showSystemObjects = browser.Preference("show_system_objects")
	n.showNode = browser.Register("node", "show_node_"+n.Type, n.Title, preferences.Boolean, n.ShowOnBrowser,
		preferences.WithCategoryLabel("Nodes"))

	for _, c := range n.children {
		c.RegisterPreferences(reg)
	}
}

// RegisterRoutes registers the routes of the submodules. Concrete modules
// call it after adding their own routes.
func (n *NodeBase) RegisterRoutes(r *mux.Router) {
	for _, c := range n.children {
		c.RegisterRoutes(r)
	}
}
