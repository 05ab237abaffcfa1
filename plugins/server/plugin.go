// Package server contributes registered database servers to the browser
// tree, below their server group.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/browser"
	"github.com/darkden-lab/pgbrowser/internal/crypto"
	"github.com/darkden-lab/pgbrowser/internal/httputil"
	"github.com/darkden-lab/pgbrowser/internal/plugin"
)

const NodeType = "server"

// Groups tells whether a server group belongs to a user.
type Groups interface {
	HasGroup(ctx context.Context, userID string, id int) (bool, error)
}

// Module contributes server nodes. Its script is loaded when a server group
// is expanded.
type Module struct {
	browser.NodeBase

	store    Store
	groups   Groups
	cipher   *crypto.Cipher
	logger   zerolog.Logger
	validate *validator.Validate
}

func New(store Store, groups Groups, cipher *crypto.Cipher, logger zerolog.Logger) *Module {
	return &Module{
		NodeBase: browser.NewNodeBase(NodeType, "Servers", plugin.String("server_group")),
		store:    store,
		groups:   groups,
		cipher:   cipher,
		logger:   logger,
		validate: validator.New(),
	}
}

func (m *Module) node(sv Server) browser.Node {
	return m.GenerateBrowserNode(sv.ID, sv.GroupID, sv.Name, "icon-server-not-connected", true, NodeType,
		map[string]interface{}{
			"connected":   false,
			"server_type": "pg",
		})
}

func (m *Module) nodes(servers []Server) []browser.Node {
	nodes := make([]browser.Node, 0, len(servers))
	for _, sv := range servers {
		nodes = append(nodes, m.node(sv))
	}
	return nodes
}

// GetNodes returns every server of the current user.
func (m *Module) GetNodes(ctx context.Context) ([]browser.Node, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return nil, auth.ErrUserNotFound
	}
	servers, err := m.store.ListAll(ctx, uid)
	if err != nil {
		return nil, err
	}
	return m.nodes(servers), nil
}

func (m *Module) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(m.NodePath()+"/nodes/{gid:[0-9]+}", m.handleNodes).Methods("GET")
	r.HandleFunc(m.NodePath()+"/obj/{gid:[0-9]+}", m.handleCreate).Methods("POST")
	m.NodeBase.RegisterRoutes(r)
}

// group resolves the gid route variable to one of the caller's groups and
// writes the error response when it is not.
func (m *Module) group(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	uid := auth.UserIDFromContext(r.Context())
	gid, err := strconv.Atoi(mux.Vars(r)["gid"])
	if err != nil {
		httputil.WriteAjaxError(w, http.StatusBadRequest, "invalid server group id")
		return "", 0, false
	}

	ok, err := m.groups.HasGroup(r.Context(), uid, gid)
	if err != nil {
		m.logger.Error().Err(err).Int("gid", gid).Msg("failed to look up server group")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to look up server group")
		return "", 0, false
	}
	if !ok {
		httputil.WriteAjaxError(w, http.StatusGone, "Could not find the server group.")
		return "", 0, false
	}
	return uid, gid, true
}

func (m *Module) handleNodes(w http.ResponseWriter, r *http.Request) {
	uid, gid, ok := m.group(w, r)
	if !ok {
		return
	}

	servers, err := m.store.List(r.Context(), uid, gid)
	if err != nil {
		m.logger.Error().Err(err).Int("gid", gid).Msg("failed to list servers")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to list servers")
		return
	}
	httputil.WriteAjax(w, m.nodes(servers))
}

type createRequest struct {
	Name     string `json:"name" validate:"required,max=128"`
	Host     string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	DB       string `json:"db"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	uid, gid, ok := m.group(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteAjaxError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := m.validate.Struct(req); err != nil {
		httputil.WriteAjaxError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Port == 0 {
		req.Port = 5432
	}
	if req.DB == "" {
		req.DB = "postgres"
	}

	sealed, err := m.cipher.SealString(req.Password)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to encrypt server password")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to save server")
		return
	}

	sv, err := m.store.Create(r.Context(), Server{
		UserID:        uid,
		GroupID:       gid,
		Name:          req.Name,
		Host:          req.Host,
		Port:          req.Port,
		MaintenanceDB: req.DB,
		Username:      req.Username,
		Password:      sealed,
	})
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to create server")
		httputil.WriteAjaxError(w, http.StatusInternalServerError, "failed to save server")
		return
	}
	m.logger.Info().Int("server_id", sv.ID).Int("gid", gid).Msg("server registered")

	httputil.WriteAjax(w, m.node(sv))
}

// Password returns the saved password of one of the user's servers.
func (m *Module) Password(ctx context.Context, userID string, id int) (string, error) {
	servers, err := m.store.ListAll(ctx, userID)
	if err != nil {
		return "", err
	}
	for _, sv := range servers {
		if sv.ID == id {
			return m.cipher.OpenString(sv.Password)
		}
	}
	return "", ErrNotFound
}
