package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/darkden-lab/pgbrowser/docs"
	"github.com/darkden-lab/pgbrowser/internal/audit"
	"github.com/darkden-lab/pgbrowser/internal/auth"
	"github.com/darkden-lab/pgbrowser/internal/browser"
	"github.com/darkden-lab/pgbrowser/internal/config"
	"github.com/darkden-lab/pgbrowser/internal/crypto"
	"github.com/darkden-lab/pgbrowser/internal/db"
	"github.com/darkden-lab/pgbrowser/internal/flash"
	"github.com/darkden-lab/pgbrowser/internal/logging"
	"github.com/darkden-lab/pgbrowser/internal/mail"
	mw "github.com/darkden-lab/pgbrowser/internal/middleware"
	"github.com/darkden-lab/pgbrowser/internal/plugin"
	"github.com/darkden-lab/pgbrowser/internal/preferences"
	"github.com/darkden-lab/pgbrowser/internal/settings"
	"github.com/darkden-lab/pgbrowser/internal/setup"
	pluginServer "github.com/darkden-lab/pgbrowser/plugins/server"
	pluginServerGroup "github.com/darkden-lab/pgbrowser/plugins/servergroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(os.Stderr, "info", false)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.Debug)
	secureCookies := strings.HasPrefix(cfg.ExternalURL, "https://")

	// Database
	ctx := context.Background()
	var pool *pgxpool.Pool
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn().Err(err).Msg("database connection failed, continuing with in-memory stores")
	} else {
		defer database.Close()
		pool = database.Pool
		if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.Warn().Err(err).Msg("migrations failed")
		}
	}

	// Stores
	var (
		users       auth.UserStore
		prefValues  preferences.ValueStore
		settingsDB  settings.Store
		groupStore  pluginServerGroup.Store
		serverStore pluginServer.Store
	)
	if pool != nil {
		users = auth.NewPGUserStore(pool)
		prefValues = preferences.NewPGStore(pool)
		settingsDB = settings.NewPGStore(pool)
		groupStore = pluginServerGroup.NewPGStore(pool)
		serverStore = pluginServer.NewPGStore(pool)
	} else {
		users = auth.NewMemoryUserStore()
		prefValues = preferences.NewMemoryStore()
		settingsDB = settings.NewMemoryStore()
		groupStore = pluginServerGroup.NewMemoryStore()
		serverStore = pluginServer.NewMemoryStore()
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.SecretKey,
		auth.WithSessionDuration(cfg.SessionDuration),
		auth.WithResetDuration(cfg.ResetPasswordWithin),
	)
	authService := auth.NewAuthService(users, jwtService)
	sessions := auth.NewSessions(jwtService, secureCookies)

	// Setup
	setupService := setup.NewService(authService, logging.Component(logger, "setup"))
	if err := setupService.Bootstrap(ctx, cfg.SetupEmail, cfg.SetupPassword); err != nil {
		logger.Error().Err(err).Msg("failed to create the configured administrator")
	}

	// Mail & audit
	mailer, err := mail.New(mail.Config{
		Provider:    cfg.MailProvider,
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Pass:        cfg.SMTPPass,
		SendGridKey: cfg.SendGridKey,
		From:        cfg.MailFrom,
		FromName:    cfg.MailFromName,
	}, logging.Component(logger, "mail"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure mail")
	}
	auditStore := audit.NewStore(pool)
	recorder := audit.NewRecorder(auditStore, logging.Component(logger, "audit"))

	recovery := auth.NewRecovery(authService, mailer, recorder, auth.RecoveryConfig{
		AppName:          cfg.AppName,
		ExternalURL:      cfg.ExternalURL,
		Recoverable:      cfg.SecurityRecoverable,
		SendChangeNotice: cfg.SendPasswordChangeEmail,
		SendResetNotice:  cfg.SendPasswordResetNotice,
		SubjectReset:     cfg.EmailSubjectPasswordReset,
		SubjectChange:    cfg.EmailSubjectPasswordChange,
		SubjectNotice:    cfg.EmailSubjectPasswordNotice,
	}, logging.Component(logger, "recovery"))

	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid encryption key")
	}

	// Module registry
	engine := plugin.NewEngine(pool, logging.Component(logger, "plugins"))
	prefRegistry := preferences.NewRegistry(prefValues)
	preferences.RegisterCommon(prefRegistry)

	browserModule := browser.New(cfg, browser.Deps{
		Host:          engine,
		Recovery:      recovery,
		Sessions:      sessions,
		Settings:      settingsDB,
		Logger:        logging.Component(logger, "browser"),
		RecoveryLimit: mw.RateLimit(1, 5),
	})

	serverGroups := pluginServerGroup.New(groupStore, logging.Component(logger, "server_group"))
	serverGroups.AddSubmodule(pluginServer.New(serverStore, serverGroups, cipher, logging.Component(logger, "server")))
	browserModule.AddSubmodule(serverGroups)

	loginRequired := mw.LoginRequired("/login")
	registerModules(engine, logger,
		browserModule,
		&plugin.Basic{
			ID:    "preferences",
			Title: "Preferences",
			Routes: func(r *mux.Router) {
				protected := r.NewRoute().Subrouter()
				protected.Use(loginRequired)
				preferences.NewHandlers(prefRegistry).RegisterRoutes(protected)
			},
		},
		&plugin.Basic{
			ID:    "settings",
			Title: "Settings",
			Routes: func(r *mux.Router) {
				protected := r.NewRoute().Subrouter()
				protected.Use(loginRequired)
				settings.NewHandlers(settingsDB).RegisterRoutes(protected)
			},
		},
	)
	if err := engine.LoadStates(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load module states")
	}
	engine.RegisterPreferences(prefRegistry)

	// Router
	r := mux.NewRouter()
	r.Use(mw.RequestLogger(logging.Component(logger, "http")))
	r.Use(mw.RateLimit(100, 200))
	r.Use(flash.NewManager(cfg.SecretKey, secureCookies).Middleware)
	r.Use(mw.Session(sessions))
	r.Use(audit.Middleware(auditStore, logging.Component(logger, "audit")))

	r.HandleFunc("/healthz", healthzHandler).Methods("GET")
	docs.RegisterRoutes(r)
	setup.NewHandlers(setupService, sessions, cfg.PasswordMinLength).RegisterRoutes(r)

	// Everything else waits for the first administrator.
	app := r.NewRoute().Subrouter()
	app.Use(setup.GuardMiddleware(setupService, 30*time.Second))
	app.Handle("/", http.RedirectHandler(browser.URLPrefix+"/", http.StatusFound)).Methods("GET")

	authHandlers := auth.NewHandlers(authService, sessions, cfg.PostLoginView, cfg.DefaultLanguage, logging.Component(logger, "auth"))
	authHandlers.RegisterRoutes(app)

	protected := app.NewRoute().Subrouter()
	protected.Use(loginRequired)
	authHandlers.RegisterProtectedRoutes(protected)

	admin := app.NewRoute().Subrouter()
	admin.Use(loginRequired, mw.AdminRequired())
	auth.NewUserManagementHandlers(authService, cfg.PasswordMinLength).RegisterRoutes(admin)
	audit.NewHandlers(auditStore, nil).RegisterRoutes(admin)
	plugin.NewHandlers(engine, nil).RegisterRoutes(admin)

	engine.RegisterAllRoutes(app)

	c := cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        c.Handler(r),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Fatal().Err(err).Msg("server shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("app", cfg.AppName).Msg("starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server failed to start")
	}
	logger.Info().Msg("server stopped")
}

func registerModules(engine *plugin.Engine, logger zerolog.Logger, modules ...plugin.Module) {
	for _, m := range modules {
		if err := engine.Register(m); err != nil {
			logger.Warn().Err(err).Str("module", m.Name()).Msg("failed to register module")
		}
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}
