// Package servergroup is the top level node of the browser tree: the
// folders a user sorts registered servers into.
package servergroup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/browser"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
)

const (
	NodeType = "server_group"
	// DefaultGroup is created for users who have no group yet.
	DefaultGroup = "Servers"
)

// Module contributes server_group nodes.
type Module struct {
	browser.NodeBase

	store    Store
	logger   zerolog.Logger
	validate *validator.Validate
}

func New(store Store, logger zerolog.Logger) *Module {
	return &Module{
		NodeBase: browser.NewNodeBase(NodeType, "Server Groups", nil),
		store:    store,
		logger:   logger,
		validate: validator.New(),
	}
}

// Groups returns the user's groups, creating the default one when there is
// none.
func (m *Module) Groups(ctx context.Context, userID string) ([]Group, error) {
	groups, err := m.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		return groups, nil
	}

	g, err := m.store.Create(ctx, userID, DefaultGroup)
	if err != nil && !errors.Is(err, ErrDuplicate) {
		return nil, fmt.Errorf("failed to create default server group: %w", err)
	}
	if err != nil {
		return m.store.List(ctx, userID)
	}
	m.logger.Debug().Str("user_id", userID).Int("group_id", g.ID).Msg("default server group created")
	return []Group{g}, nil
}

// HasGroup reports whether id is one of the user's groups.
func (m *Module) HasGroup(ctx context.Context, userID string, id int) (bool, error) {
	_, err := m.store.Get(ctx, userID, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *Module) node(g Group, idx int) browser.Node {
	return m.GenerateBrowserNode(g.ID, nil, g.Name, "icon-"+NodeType, true, NodeType,
		map[string]interface{}{"can_delete": idx > 0})
}

// GetNodes returns the current user's server groups.
func (m *Module) GetNodes(ctx context.Context) ([]browser.Node, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return nil, auth.ErrUserNotFound
	}
	groups, err := m.Groups(ctx, uid)
	if err != nil {
		return nil, err
	}

	nodes := make([]browser.Node, 0, len(groups))
	for i, g := range groups {
		nodes = append(nodes, m.node(g, i))
	}
	return nodes, nil
}

func (m *Module) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(m.NodePath()+"/nodes/", m.handleNodes).Methods("GET")
	r.HandleFunc(m.NodePath()+"/obj/", m.handleCreate).Methods("POST")
	m.NodeBase.RegisterRoutes(r)
}

func (m *Module) handleNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := m.GetNodes(r.Context())
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list server groups")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to list server groups")
		return
	}
	httputil.WriteAjax(w, nodes)
}

type createRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserIDFromContext(ctx)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteAjaxError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := m.validate.Struct(req); err != nil {
		httputil.WriteAjaxError(w, http.StatusBadRequest, "a name of at most 128 characters is required")
		return
	}

	groups, err := m.Groups(ctx, uid)
	if err != nil {
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to create server group")
		return
	}
	g, err := m.store.Create(ctx, uid, req.Name)
	switch {
	case errors.Is(err, ErrDuplicate):
		httputil.WriteAjaxError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		m.logger.Error().Err(err).Msg("failed to create server group")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to create server group")
		return
	}

	httputil.WriteAjax(w, m.node(g, len(groups)))
}
